package api

import (
	"context"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/catalog"
	"github.com/Luis200410/Improve/internal/service"
)

type PomodoroService interface {
	Summary(ctx context.Context, user *internal.User) (*service.Summary, error)
	Start(ctx context.Context, user *internal.User, req *service.StartRequest) (*service.SessionSnapshot, error)
	Complete(ctx context.Context, user *internal.User, req *service.CompleteRequest) (*service.CompletionResult, error)
	Cancel(ctx context.Context, user *internal.User, req *service.CancelRequest) error
}

type DashboardService interface {
	Dashboard(ctx context.Context, user *internal.User, slug string) (*service.Dashboard, error)
	Microapps() []catalog.Microapp
}

type App interface {
	Logger() internal.Logger
	Pomodoro() PomodoroService
	Dashboard() DashboardService
}

type app struct {
	logger    internal.Logger
	pomodoro  PomodoroService
	dashboard DashboardService
}

func NewApp(logger internal.Logger, pomodoro PomodoroService, dashboard DashboardService) App {
	return &app{logger: logger, pomodoro: pomodoro, dashboard: dashboard}
}

func (a *app) Logger() internal.Logger     { return a.logger }
func (a *app) Pomodoro() PomodoroService   { return a.pomodoro }
func (a *app) Dashboard() DashboardService { return a.dashboard }
