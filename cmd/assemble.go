package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm-relation-assembler/internal/logger"
	"github.com/wegman-software/osm-relation-assembler/internal/luapolicy"
	"github.com/wegman-software/osm-relation-assembler/internal/metrics"
	"github.com/wegman-software/osm-relation-assembler/internal/pbf"
	"github.com/wegman-software/osm-relation-assembler/internal/policy"
	"github.com/wegman-software/osm-relation-assembler/internal/relations"
	"github.com/wegman-software/osm-relation-assembler/internal/report"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble <input.osm.pbf>",
	Short: "Assemble relations and their members from a PBF file",
	Long: `Drive a two-pass scan over input.osm.pbf: pass 1 identifies relations of
interest and the members they need, pass 2 captures those members and
fires a completion hook for each relation as soon as its member set is
fully observed.`,
	Args: cobra.ExactArgs(1),
	Run:  runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().BoolVar(&cfg.TrackNodes, "track-nodes", cfg.TrackNodes, "Track node members")
	assembleCmd.Flags().BoolVar(&cfg.TrackWays, "track-ways", cfg.TrackWays, "Track way members")
	assembleCmd.Flags().BoolVar(&cfg.TrackRelations, "track-relations", cfg.TrackRelations, "Track relation members (superrelations)")
	assembleCmd.Flags().StringVar(&cfg.PolicyFile, "policy-file", "", "YAML interest-policy file (default: keep everything)")
	assembleCmd.Flags().StringVar(&cfg.LuaPolicyFile, "lua-policy-file", "", "Lua interest-policy script, alternative to --policy-file")
	assembleCmd.Flags().IntVar(&cfg.PurgeEvery, "purge-every", 0, "Relation completions between members-arena compactions (0 = engine default)")
	assembleCmd.Flags().StringVar(&cfg.MembersArenaDir, "members-arena-dir", "", "Directory for a disk-backed members arena (default: in-memory)")
	assembleCmd.Flags().StringVar(&cfg.ReportFile, "report-file", "", "Arrow IPC path for the end-of-run memory/incomplete-relation report")
	assembleCmd.Flags().IntVarP(&cfg.Workers, "workers", "j", 0, "PBF decode parallelism (0 = all CPUs)")
}

// predicate is the common surface cmd needs from either interest-policy
// collaborator (internal/policy.Policy or internal/luapolicy.Runtime).
type predicate interface {
	KeepRelation(tags map[string]string) (bool, error)
	KeepMember(relationTags map[string]string, role string) (bool, error)
}

// policyAdapter wraps policy.Policy (plain-bool API) to match predicate's
// error-returning shape, so assembleHooks can treat either collaborator
// identically.
type policyAdapter struct{ p *policy.Policy }

func (a policyAdapter) KeepRelation(tags map[string]string) (bool, error) {
	return a.p.KeepRelation(tags), nil
}

func (a policyAdapter) KeepMember(_ map[string]string, role string) (bool, error) {
	return a.p.KeepMember(role), nil
}

func loadPredicate(cfg_ *configPaths) (predicate, func(), error) {
	switch {
	case cfg_.luaPolicyFile != "":
		rt := luapolicy.NewRuntime()
		if err := rt.LoadFile(cfg_.luaPolicyFile); err != nil {
			rt.Close()
			return nil, nil, err
		}
		return rt, rt.Close, nil
	case cfg_.policyFile != "":
		pc, err := policy.LoadConfig(cfg_.policyFile)
		if err != nil {
			return nil, nil, err
		}
		p, err := policy.NewPolicy(pc)
		if err != nil {
			return nil, nil, err
		}
		return policyAdapter{p}, func() {}, nil
	default:
		p, _ := policy.NewPolicy(nil)
		return policyAdapter{p}, func() {}, nil
	}
}

// configPaths narrows cfg down to the two fields loadPredicate needs, so
// it doesn't have to import internal/config just for this call.
type configPaths struct {
	policyFile    string
	luaPolicyFile string
}

// assembleHooks implements relations.Hooks over a predicate collaborator,
// counting completions for the final summary and logging progress every
// 1000 completions.
type assembleHooks struct {
	relations.BaseHooks
	pred        predicate
	log         *zap.Logger
	completions int
}

func (h *assembleHooks) KeepRelation(c *relations.Collector, r relations.Relation) bool {
	tags := tagsOf(r)
	ok, err := h.pred.KeepRelation(tags)
	if err != nil {
		h.log.Warn("keep_relation predicate failed, rejecting relation", zap.Int64("relation_id", r.ID()), zap.Error(err))
		return false
	}
	return ok
}

func (h *assembleHooks) KeepMember(c *relations.Collector, r relations.Relation, ref relations.Ref) bool {
	ok, err := h.pred.KeepMember(tagsOf(r), ref.Role)
	if err != nil {
		h.log.Warn("keep_member predicate failed, rejecting member", zap.Int64("relation_id", r.ID()), zap.Int64("member_id", ref.ID), zap.Error(err))
		return false
	}
	return ok
}

func (h *assembleHooks) CompleteRelation(c *relations.Collector, rm *relations.RelationMeta) error {
	h.completions++
	if h.completions%1000 == 0 {
		h.log.Info("relations assembled so far", zap.Int("count", h.completions))
	}
	return nil
}

func tagsOf(r relations.Relation) map[string]string {
	if t, ok := r.(pbf.Tagged); ok {
		return t.GetTags()
	}
	return nil
}

func runAssemble(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	pred, closePred, err := loadPredicate(&configPaths{policyFile: cfg.PolicyFile, luaPolicyFile: cfg.LuaPolicyFile})
	if err != nil {
		exitWithError("failed to load interest policy", err)
	}
	defer closePred()

	membersArena, closeArena, err := newMembersArena(cfg.MembersArenaDir)
	if err != nil {
		exitWithError("failed to create members arena", err)
	}
	defer closeArena()

	hooks := &assembleHooks{pred: pred, log: log}
	collector := relations.NewCollector(hooks, cfg.TrackNodes, cfg.TrackWays, cfg.TrackRelations, membersArena, cfg.PurgeEvery)
	source := pbf.NewSource(cfg.InputFile, cfg.Workers)

	log.Info("starting relation assembly",
		zap.String("input", cfg.InputFile),
		zap.Bool("track_nodes", cfg.TrackNodes),
		zap.Bool("track_ways", cfg.TrackWays),
		zap.Bool("track_relations", cfg.TrackRelations),
	)
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsInterval > 0 {
		mc := metrics.NewCollector(cfg.MetricsInterval, log)
		g.Go(func() error {
			mc.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return runTwoPass(gctx, collector, source, log)
	})

	if err := g.Wait(); err != nil {
		exitWithError("assembly failed", err)
	}

	elapsed := time.Since(start)
	incomplete := collector.GetIncompleteRelations()
	stats := collector.UsedMemory()

	log.Info("assembly complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int("completed_relations", hooks.completions),
		zap.Int("incomplete_relations", len(incomplete)),
		zap.Int("relation_arena_bytes", stats.RelationArenaBytes),
		zap.Int("members_arena_bytes", stats.MembersArenaBytes),
	)

	if cfg.ReportFile != "" {
		if err := report.Write(cfg.ReportFile, stats, incomplete); err != nil {
			exitWithError("failed to write report", err)
		}
		log.Info("wrote report", zap.String("path", cfg.ReportFile))
	}
}

// runTwoPass drives Collector.ReadRelations over source.Pass1, then
// Collector.FindAndAddObject over source.Pass2, then Flush — the two
// sequential reader instances spec §5 requires, each from byte zero.
func runTwoPass(ctx context.Context, c *relations.Collector, source *pbf.Source, log *zap.Logger) error {
	pass1, pass1Err := source.Pass1(ctx)
	c.ReadRelations(pass1)
	if err := <-pass1Err; err != nil {
		return fmt.Errorf("pass 1: %w", err)
	}

	pass2, pass2Err := source.Pass2(ctx)
	for o := range pass2 {
		if _, err := c.FindAndAddObject(o); err != nil {
			return fmt.Errorf("pass 2: complete_relation hook: %w", err)
		}
	}
	if err := <-pass2Err; err != nil {
		return fmt.Errorf("pass 2: %w", err)
	}

	return c.Flush()
}

// newMembersArena selects an in-memory ObjectArena (the default) or a
// disk-backed ByteArena+GobArena pair rooted at dir, for inputs too large
// to comfortably hold as live Go values.
func newMembersArena(dir string) (relations.Arena[relations.Object], func(), error) {
	if dir == "" {
		return relations.NewObjectArena[relations.Object](4096), func() {}, nil
	}
	path := filepath.Join(dir, "members.arena")
	ba, err := relations.NewByteArena(path)
	if err != nil {
		return nil, nil, err
	}
	return relations.NewGobArena[relations.Object](ba), func() { ba.Close() }, nil
}
