package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kiddiebus/kiddiebus-client/fleet"
	"github.com/kiddiebus/kiddiebus-client/mapview"
	"github.com/kiddiebus/kiddiebus-client/mapview/staticmap"
	"github.com/kiddiebus/kiddiebus-client/tracking"
	"github.com/spf13/cobra"
)

const trackMount = "track"

func newTrackCmd(a *app) *cobra.Command {
	var (
		studentID int
		duration  time.Duration
		showURL   bool
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Follow the bus serving a student",
		Long: `track polls the location of the bus assigned to a student's route and prints
it on every update until interrupted. Without --student the first student with a
route is chosen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			return a.track(cmd.Context(), studentID, duration, showURL)
		},
	}
	cmd.Flags().IntVar(&studentID, "student", 0, "student to track")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&showURL, "url", false, "print the static map URL on every update")
	return cmd
}

// track runs until ctx ends or, when duration is set, for that long once tracking has started
func (a *app) track(ctx context.Context, studentID int, duration time.Duration, showURL bool) error {
	api := a.session().API()
	students, err := api.ListStudents(ctx)
	if err != nil {
		return err
	}
	student, err := pickStudent(students, studentID)
	if err != nil {
		return err
	}

	lat, lng := a.cfg.GetDefaultCenter()
	resource := mapview.NewResource(staticmap.NewLoader(a.cfg).Load, mapview.WithResourceLogger(a.logger))
	renderer := mapview.NewRenderer(resource, trackMount,
		mapview.WithCenter(lat, lng),
		mapview.WithZoom(a.cfg.GetDefaultZoom()),
		mapview.WithLogger(a.logger),
	)

	var surface *staticmap.Surface
	if err := renderer.Mount(ctx); err != nil {
		a.out.Warning("Map unavailable: %v", err)
	} else if lib, err := resource.Acquire(ctx); err == nil {
		surface, err = lib.(*staticmap.Library).Mount(trackMount, mapview.LatLng{Lat: lat, Lng: lng}, a.cfg.GetDefaultZoom())
		if err != nil {
			a.logger.Warn().Err(err).Str("mount", trackMount).Msg("Failed to open map surface, printing positions only")
		}
	}

	tracker := tracking.NewTracker(api,
		tracking.FromConfig(a.cfg),
		tracking.WithLogger(a.logger),
		tracking.WithObserver(tracking.ObserverFunc(func(u tracking.Update) {
			a.showUpdate(u, renderer, surface, showURL)
		})),
	)
	defer tracker.Close()

	a.out.Info("Tracking %s", student.FullName)
	state, err := tracker.Select(ctx, student)
	if err != nil {
		return err
	}
	if state == tracking.Idle {
		return nil
	}

	if duration <= 0 {
		<-ctx.Done()
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}

func pickStudent(students []fleet.Student, id int) (fleet.Student, error) {
	if len(students) == 0 {
		return fleet.Student{}, fmt.Errorf("no students found for this account")
	}
	for _, s := range students {
		if id != 0 && s.ID == id {
			return s, nil
		}
		if id == 0 && s.HasRoute() {
			return s, nil
		}
	}
	if id != 0 {
		return fleet.Student{}, fmt.Errorf("student %d not found", id)
	}
	return students[0], nil
}

// showUpdate runs on the tracker's delivery path and must not call back into it
func (a *app) showUpdate(u tracking.Update, r *mapview.Renderer, surface *staticmap.Surface, showURL bool) {
	switch {
	case u.Err != nil:
		a.out.Warning("%s: %v", u.State, u.Err)
	case u.State == tracking.Idle && u.Route == nil:
		r.ShowNoRoute()
		a.out.Info("This student is not assigned to a route")
	case u.State == tracking.Idle:
		r.ShowNoRoute()
		a.out.Info("Route %q has no bus assigned", u.Route.Name)
	case u.Route != nil:
		a.out.Info("Route %q", u.Route.Name)
	}

	if u.Snapshot == nil {
		return
	}
	r.Update([]fleet.Snapshot{*u.Snapshot})
	if surface == nil {
		a.printSnapshot(*u.Snapshot)
		return
	}
	if err := surface.Render(a.out.out); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to render map table")
	}
	if showURL {
		a.out.Field("Map", surface.URL())
	}
}

func (a *app) printSnapshot(s fleet.Snapshot) {
	if !s.HasPosition() {
		a.out.Info("Bus %s has not reported a position yet", s.Label)
		return
	}
	a.out.Field("Bus", s.Label)
	a.out.Field("Position", fmt.Sprintf("%.5f, %.5f", *s.Latitude, *s.Longitude))
	if s.UpdatedAt != nil {
		a.out.Field("Updated", s.UpdatedAt.Format(time.Kitchen))
	}
}
