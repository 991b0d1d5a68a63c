package service

import (
	"context"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/catalog"
)

const dashboardPath = "/dashboard"

type SidebarItem struct {
	Slug    string `json:"slug"`
	Label   string `json:"label"`
	Tagline string `json:"tagline"`
	Href    string `json:"href"`
	Active  bool   `json:"active"`
}

type Dashboard struct {
	ActiveMicroapp catalog.Microapp `json:"active_microapp"`
	Sidebar        []SidebarItem    `json:"sidebar"`
	Pomodoro       *Summary         `json:"pomodoro"`
}

// DashboardService composes the read-only dashboard view.
type DashboardService struct {
	catalog  *catalog.Catalog
	pomodoro *PomodoroService
}

func NewDashboardService(c *catalog.Catalog, pomodoro *PomodoroService) *DashboardService {
	return &DashboardService{catalog: c, pomodoro: pomodoro}
}

func (d *DashboardService) Microapps() []catalog.Microapp {
	return d.catalog.All()
}

// Dashboard selects the microapp named by slug, falling back to the first
// one, and attaches the user's pomodoro summary.
func (d *DashboardService) Dashboard(ctx context.Context, user *internal.User, slug string) (*Dashboard, error) {
	active := d.catalog.Lookup(slug)

	summary, err := d.pomodoro.Summary(ctx, user)
	if err != nil {
		return nil, err
	}

	apps := d.catalog.All()
	sidebar := make([]SidebarItem, 0, len(apps))
	for i, app := range apps {
		href := dashboardPath + "?app=" + app.Slug
		if i == 0 {
			href = dashboardPath
		}
		sidebar = append(sidebar, SidebarItem{
			Slug:    app.Slug,
			Label:   app.Label,
			Tagline: app.Tagline,
			Href:    href,
			Active:  app.Slug == active.Slug,
		})
	}

	return &Dashboard{ActiveMicroapp: active, Sidebar: sidebar, Pomodoro: summary}, nil
}
