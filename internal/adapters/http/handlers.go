package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
)

// TaxonomyHandler returns the category taxonomy in declaration order.
func TaxonomyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"tag_key":    deps.Taxonomy.TagKey(),
			"categories": deps.Taxonomy.Categories(),
			"other": fiber.Map{
				"label": domain.OtherLabel,
				"color": domain.OtherColor,
			},
		})
	}
}

// PlacesHandler returns the saved origin presets.
func PlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"default": deps.Query.DefaultPlace,
			"places":  domain.SavedPlaces(),
		})
	}
}

// GetStateHandler returns the current parameters and status line.
func GetStateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

type originRequest struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Trigger string   `json:"trigger"`
}

// SetOriginHandler moves the origin. trigger defaults to "update".
func SetOriginHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req originRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		trigger := usecases.Trigger(req.Trigger)
		if trigger == "" {
			trigger = usecases.TriggerUpdate
		}

		origin := domain.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
		if err := deps.Scheduler.SetOrigin(c.UserContext(), origin, trigger); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

type radiusRequest struct {
	Radius *int `json:"radius"`
	Step   int  `json:"step"` // relative change in radius_step units
}

// SetRadiusHandler sets or steps the radius, clamped to the configured range.
func SetRadiusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req radiusRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var radius int
		switch {
		case req.Radius != nil && req.Step != 0:
			return errBadRequest(c, "radius and step are mutually exclusive")
		case req.Radius != nil:
			radius = deps.Query.ClampRadius(*req.Radius)
		case req.Step != 0:
			radius = deps.Query.StepRadius(deps.Scheduler.Snapshot().State.Radius, req.Step)
		default:
			return errBadRequest(c, "radius or step is required")
		}

		if err := deps.Scheduler.SetRadius(c.UserContext(), radius); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

type categoriesRequest struct {
	Labels []string `json:"labels"`
}

// SetCategoriesHandler replaces the category selection.
func SetCategoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req categoriesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Scheduler.SetCategories(c.UserContext(), req.Labels); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

// SelectAllHandler selects every category.
func SelectAllHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Scheduler.SelectAll(c.UserContext()); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

// ClearCategoriesHandler deselects every category.
func ClearCategoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Scheduler.ClearCategories(c.UserContext()); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

type placeRequest struct {
	Name string `json:"name"`
}

// SelectPlaceHandler moves the origin to a saved place.
func SelectPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req placeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.Name) == "" {
			return errBadRequest(c, "name is required")
		}
		if _, err := deps.Scheduler.SelectPlace(c.UserContext(), req.Name); err != nil {
			return errMutation(c, err)
		}
		return c.JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

// RefreshHandler refetches the current parameters immediately.
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Scheduler.Refresh(c.UserContext()); err != nil {
			return errMutation(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(stateView(deps.Scheduler.Snapshot(), deps))
	}
}

// ListPOIsHandler returns the visible POIs, optionally narrowed to one
// category, with offset/limit pagination.
func ListPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := deps.Scheduler.Snapshot()
		pois := snap.Visible

		if cat := c.Query("category"); cat != "" {
			if cat != domain.OtherLabel && !deps.Taxonomy.Has(cat) {
				return errBadRequest(c, "unknown category: "+cat)
			}
			var narrowed []domain.EnrichedPOI
			for _, p := range pois {
				if p.CategoryOrOther() == cat {
					narrowed = append(narrowed, p)
				}
			}
			pois = narrowed
		}

		if c.Query("sort") == "distance" {
			pois = append([]domain.EnrichedPOI(nil), pois...)
			usecases.SortByDistance(pois)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 1000 {
			limit = 100
		}

		total := len(pois)
		if offset >= total {
			pois = nil
		} else {
			pois = pois[offset:min(offset+limit, total)]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: poiViews(pois, deps.Taxonomy), Pagination: pg})
	}
}

// GroupedPOIsHandler returns the visible POIs grouped for the list surface.
func GroupedPOIsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := deps.Scheduler.Snapshot()
		return c.JSON(fiber.Map{
			"seq":    snap.Seq,
			"groups": groupViews(snap.Visible, deps.Taxonomy),
		})
	}
}

// StatsHandler returns statistics over the visible POIs.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := deps.Scheduler.Snapshot()
		return c.JSON(fiber.Map{
			"seq":   snap.Seq,
			"stats": snap.Stats,
		})
	}
}

// BoundsHandler returns the map-fit box for the applied origin and radius.
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(boundsView(deps.Scheduler.Snapshot()))
	}
}
