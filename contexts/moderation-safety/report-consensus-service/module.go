package reportconsensus

import (
	"log/slog"

	httpadapter "tribunal/contexts/moderation-safety/report-consensus-service/adapters/http"
	"tribunal/contexts/moderation-safety/report-consensus-service/adapters/memory"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/commands"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/consensus"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/queries"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

type Module struct {
	Handler httpadapter.Handler

	// Populated by NewInMemoryModule only.
	Store     *memory.Store
	Posts     *memory.ContentStore
	Skills    *memory.ContentStore
	Knowledge *memory.ContentStore
	Feed      *memory.Feed
}

type Dependencies struct {
	Reports       ports.ReportRepository
	Bans          ports.BanRepository
	Contents      map[entities.TargetType]ports.ContentStore
	Announcements ports.AnnouncementSink
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Metrics       ports.Metrics

	QuorumThreshold int
	MinReasonLength int
	ReasonMaxLength int
	AnnouncerID     string

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	evaluator := consensus.Evaluator{Threshold: deps.QuorumThreshold}
	executor := resolution.Executor{
		Contents:        deps.Contents,
		Reports:         deps.Reports,
		Bans:            deps.Bans,
		Announcements:   deps.Announcements,
		Clock:           deps.Clock,
		AnnouncerID:     deps.AnnouncerID,
		ReasonMaxLength: deps.ReasonMaxLength,
		Metrics:         deps.Metrics,
		Logger:          deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Reports: commands.ReportUseCase{
				Reports:         deps.Reports,
				Consensus:       evaluator,
				Executor:        executor,
				Clock:           deps.Clock,
				IDGen:           deps.IDGen,
				MinReasonLength: deps.MinReasonLength,
				Metrics:         deps.Metrics,
				Logger:          deps.Logger,
			},
			Votes: commands.VoteUseCase{
				Reports:   deps.Reports,
				Consensus: evaluator,
				Executor:  executor,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Metrics:   deps.Metrics,
				Logger:    deps.Logger,
			},
			Admin: commands.AdminUseCase{
				Reports:  deps.Reports,
				Bans:     deps.Bans,
				Agents:   deps.Contents[entities.TargetTypeAgent],
				Executor: executor,
				Clock:    deps.Clock,
				IDGen:    deps.IDGen,
				Metrics:  deps.Metrics,
				Logger:   deps.Logger,
			},
			Queries: queries.ReportQueryUseCase{
				Reports: deps.Reports,
				Bans:    deps.Bans,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires the engine over memory-backed stores. The quorum
// threshold falls back to the default when zero.
func NewInMemoryModule(threshold int, logger *slog.Logger) Module {
	store := memory.NewStore()
	posts := memory.NewContentStore(nil)
	skills := memory.NewContentStore(nil)
	knowledge := memory.NewContentStore(nil)
	feed := memory.NewFeed()
	module := NewModule(Dependencies{
		Reports: store,
		Bans:    store,
		Contents: map[entities.TargetType]ports.ContentStore{
			entities.TargetTypePost:      posts,
			entities.TargetTypeSkill:     skills,
			entities.TargetTypeKnowledge: knowledge,
			entities.TargetTypeAgent:     store.Agents(),
		},
		Announcements:   feed,
		Clock:           store,
		IDGen:           store,
		QuorumThreshold: threshold,
		Logger:          logger,
	})
	module.Store = store
	module.Posts = posts
	module.Skills = skills
	module.Knowledge = knowledge
	module.Feed = feed
	return module
}
