package service

import (
	"context"
	"errors"
	"time"

	"compliance-navigator-be/internal/config"
	"compliance-navigator-be/internal/dto"
	"compliance-navigator-be/internal/model"
	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/internal/repository/memory"
	"compliance-navigator-be/internal/websocket"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/events"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/renderer"
	"compliance-navigator-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IWorkbenchService interface {
	Create(ctx context.Context) (*dto.CreateWorkbenchResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.WorkbenchResponse, error)
	SelectDocument(ctx context.Context, id uuid.UUID, req *dto.SelectDocumentRequest) (*dto.WorkbenchResponse, error)
	Ask(ctx context.Context, id uuid.UUID, req *dto.AskRequest) (*dto.WorkbenchResponse, error)
	ActivateCitation(ctx context.Context, id uuid.UUID, ordinal int, req *dto.ActivateCitationRequest) (*dto.ActivateCitationResponse, error)
	ReportRendererFailure(ctx context.Context, id uuid.UUID, req *dto.RendererFailureRequest) (*dto.WorkbenchResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Surface(id uuid.UUID) (*websocket.Surface, error)
}

// WorkbenchDeps are the shared collaborators every workbench is built from.
type WorkbenchDeps struct {
	Repo           *memory.WorkbenchRepository
	Hub            *websocket.Hub
	Catalog        *corpus.Catalog
	Loader         session.DocumentLoader
	Answers        answer.Service
	Indexer        session.IndexBuilder // Optional
	Events         events.Publisher     // Optional
	RendererEvents message.Subscriber
	SDKLoader      *renderer.SDKLoader
	Renderer       config.RendererConfig
	Answer         config.AnswerConfig
	Logger         logger.ILogger
}

type workbenchService struct {
	deps WorkbenchDeps
}

func NewWorkbenchService(deps WorkbenchDeps) IWorkbenchService {
	return &workbenchService{deps: deps}
}

func (s *workbenchService) Create(ctx context.Context) (*dto.CreateWorkbenchResponse, error) {
	d := s.deps
	id := uuid.New()
	surface := d.Hub.Surface(id)

	// Assigned below; the chain cannot run before the coordinator exists.
	var coord *session.Coordinator

	strategies := renderer.BuildStrategies(d.Renderer.Order,
		&renderer.EmbedStrategy{
			ClientID:     d.Renderer.EmbedClientID,
			Loader:       d.SDKLoader,
			Events:       d.RendererEvents,
			ReadyTimeout: d.Renderer.EmbedReadyWait,
			OnFailure: func(variant renderer.Variant, reason string) {
				d.Logger.Warn("WorkbenchService", "Viewer reported an error", map[string]interface{}{"workbench": id, "variant": variant, "reason": reason})
				if _, err := coord.ReportRendererFailure(context.Background(), variant, reason); err != nil {
					d.Logger.Warn("WorkbenchService", "Renderer demotion ended with an error", map[string]interface{}{"workbench": id, "error": err.Error()})
				}
			},
		},
		&renderer.PDFJSStrategy{ViewerPath: d.Renderer.PDFJSViewerPath},
		renderer.NativeStrategy{Hint: d.Renderer.NativeViewerHint},
	)
	chain := renderer.NewChain(surface, d.Logger, strategies...)
	chain.OnTransition = func(t renderer.Transition) {
		details := map[string]interface{}{"workbench": id, "variant": t.Variant, "state": t.State}
		if t.Err != nil {
			details["error"] = t.Err.Error()
		}
		d.Logger.Debug("WorkbenchService", "Renderer transition", details)
	}

	hints := navigation.SurfaceHints{Surface: surface}
	coord = session.New(session.Options{
		ID:      id.String(),
		Loader:  d.Loader,
		Chain:   chain,
		Answers: d.Answers,
		Executor: &navigation.Executor{
			Logger:    d.Logger,
			Clipboard: hints,
			Notifier:  hints,
			Platform:  surface.Platform,
		},
		Logger:      d.Logger,
		Indexer:     d.Indexer,
		StaticIndex: s.staticIndex,
		Events:      d.Events,
		OnChange: func(snap session.Snapshot) {
			if err := surface.PushState(snap); err != nil {
				d.Logger.Warn("WorkbenchService", "Failed to push state", map[string]interface{}{"workbench": id, "error": err.Error()})
			}
		},
		TopK:     d.Answer.TopK,
		MaxWords: d.Answer.MaxWords,
	})

	wb := &model.Workbench{ID: id, Coordinator: coord, Surface: surface, CreatedAt: time.Now()}
	d.Repo.Save(wb)
	d.Logger.Info("WorkbenchService", "Workbench created", map[string]interface{}{"workbench": id})

	return &dto.CreateWorkbenchResponse{
		Id:        id,
		SocketURL: "/api/workbench/v1/" + id.String() + "/ws",
		CreatedAt: wb.CreatedAt,
		State:     coord.Snapshot(),
	}, nil
}

func (s *workbenchService) staticIndex(documentID string) navigation.Index {
	entry, err := s.deps.Catalog.Get(documentID)
	if err != nil || len(entry.Clauses) == 0 {
		return nil
	}
	return navigation.Index(entry.Clauses)
}

func (s *workbenchService) get(id uuid.UUID) (*model.Workbench, error) {
	wb, ok := s.deps.Repo.Get(id)
	if !ok {
		return nil, ErrWorkbenchNotFound
	}
	return wb, nil
}

func (s *workbenchService) Show(ctx context.Context, id uuid.UUID) (*dto.WorkbenchResponse, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &dto.WorkbenchResponse{State: wb.Coordinator.Snapshot()}, nil
}

// SelectDocument blocks until the document is rendered. A renderer chain
// that ran out of variants is returned as an error together with the state,
// which still carries the download link.
func (s *workbenchService) SelectDocument(ctx context.Context, id uuid.UUID, req *dto.SelectDocumentRequest) (*dto.WorkbenchResponse, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}
	entry, err := s.deps.Catalog.Get(req.DocumentId)
	if err != nil {
		return nil, err
	}

	snap, err := wb.Coordinator.SelectDocument(ctx, entry.DocumentRef)
	return s.respond(wb, snap, err)
}

func (s *workbenchService) Ask(ctx context.Context, id uuid.UUID, req *dto.AskRequest) (*dto.WorkbenchResponse, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}
	snap, err := wb.Coordinator.Ask(ctx, req.Question)
	return s.respond(wb, snap, err)
}

func (s *workbenchService) ActivateCitation(ctx context.Context, id uuid.UUID, ordinal int, req *dto.ActivateCitationRequest) (*dto.ActivateCitationResponse, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}

	if req == nil || req.Generation == nil {
		action, err := wb.Coordinator.ActivateCitation(ctx, ordinal)
		if err != nil {
			return nil, err
		}
		return &dto.ActivateCitationResponse{Action: action}, nil
	}

	actions := wb.Coordinator.Snapshot().Question.Actions
	if ordinal < 0 || ordinal >= len(actions) {
		return nil, session.ErrCitationNotFound
	}
	action := actions[ordinal]
	action.Generation = *req.Generation
	if err := wb.Coordinator.Execute(ctx, action); err != nil {
		return nil, err
	}
	return &dto.ActivateCitationResponse{Action: action}, nil
}

func (s *workbenchService) ReportRendererFailure(ctx context.Context, id uuid.UUID, req *dto.RendererFailureRequest) (*dto.WorkbenchResponse, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}
	snap, err := wb.Coordinator.ReportRendererFailure(ctx, renderer.Variant(req.Variant), req.Reason)
	return s.respond(wb, snap, err)
}

func (s *workbenchService) Delete(ctx context.Context, id uuid.UUID) error {
	if !s.deps.Repo.Delete(id) {
		return ErrWorkbenchNotFound
	}
	s.deps.Logger.Info("WorkbenchService", "Workbench deleted", map[string]interface{}{"workbench": id})
	return nil
}

func (s *workbenchService) Surface(id uuid.UUID) (*websocket.Surface, error) {
	wb, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return wb.Surface, nil
}

func (s *workbenchService) respond(wb *model.Workbench, snap session.Snapshot, err error) (*dto.WorkbenchResponse, error) {
	if errors.Is(err, session.ErrSuperseded) {
		return &dto.WorkbenchResponse{State: wb.Coordinator.Snapshot(), Superseded: true}, nil
	}
	if snap.WorkbenchID == "" {
		// The operation was rejected before touching state.
		return nil, err
	}
	return &dto.WorkbenchResponse{State: snap}, err
}
