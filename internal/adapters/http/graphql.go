package http

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
)

// gqlStats flattens Statistics maps into ordered lists, since GraphQL has
// no map type.
type gqlStats struct {
	TotalCount           int                      `json:"total_count"`
	AverageDistance      float64                  `json:"average_distance"`
	TopCategory          string                   `json:"top_category"`
	UniqueTagCount       int                      `json:"unique_tag_count"`
	CountsByCategory     []domain.LabelCount      `json:"counts_by_category"`
	CountsByTag          []domain.LabelCount      `json:"counts_by_tag"`
	PercentageByCategory []gqlPercentage          `json:"percentage_by_category"`
	DistanceHistogram    []domain.HistogramBucket `json:"distance_histogram"`
}

type gqlPercentage struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

func toGQLStats(s domain.Statistics) gqlStats {
	out := gqlStats{
		TotalCount:        s.TotalCount,
		AverageDistance:   s.AverageDistance,
		TopCategory:       s.TopCategory,
		UniqueTagCount:    s.UniqueTagCount,
		CountsByCategory:  s.CategoryOrder,
		DistanceHistogram: s.DistanceHistogram,
	}
	for _, lc := range s.CategoryOrder {
		out.PercentageByCategory = append(out.PercentageByCategory, gqlPercentage{
			Label:   lc.Label,
			Percent: s.PercentageByCategory[lc.Label],
		})
	}
	for tag, n := range s.CountsByTag {
		out.CountsByTag = append(out.CountsByTag, domain.LabelCount{Label: tag, Count: n})
	}
	sort.Slice(out.CountsByTag, func(i, j int) bool {
		a, b := out.CountsByTag[i], out.CountsByTag[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})
	return out
}

// buildSchema creates the GraphQL schema wired to the scheduler.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	categoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Category",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"color": &graphql.Field{Type: graphql.String},
			"icon":  &graphql.Field{Type: graphql.String},
			"tags":  &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "POI",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"lat":      &graphql.Field{Type: graphql.Float},
			"lon":      &graphql.Field{Type: graphql.Float},
			"distance": &graphql.Field{Type: graphql.Float},
			"category": &graphql.Field{Type: graphql.String},
			"color":    &graphql.Field{Type: graphql.String},
			"icon":     &graphql.Field{Type: graphql.String},
			"tag":      &graphql.Field{Type: graphql.String},
		},
	})

	groupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Group",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"color": &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
			"pois":  &graphql.Field{Type: graphql.NewList(poiType)},
		},
	})

	labelCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LabelCount",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Statistics",
		Fields: graphql.Fields{
			"total_count":        &graphql.Field{Type: graphql.Int},
			"average_distance":   &graphql.Field{Type: graphql.Float},
			"top_category":       &graphql.Field{Type: graphql.String},
			"unique_tag_count":   &graphql.Field{Type: graphql.Int},
			"counts_by_category": &graphql.Field{Type: graphql.NewList(labelCountType)},
			"counts_by_tag":      &graphql.Field{Type: graphql.NewList(labelCountType)},
			"percentage_by_category": &graphql.Field{Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
				Name: "Percentage",
				Fields: graphql.Fields{
					"label":   &graphql.Field{Type: graphql.String},
					"percent": &graphql.Field{Type: graphql.Float},
				},
			}))},
			"distance_histogram": &graphql.Field{Type: graphql.NewList(graphql.NewObject(graphql.ObjectConfig{
				Name: "HistogramBucket",
				Fields: graphql.Fields{
					"label": &graphql.Field{Type: graphql.String},
					"min":   &graphql.Field{Type: graphql.Float},
					"max":   &graphql.Field{Type: graphql.Float},
					"count": &graphql.Field{Type: graphql.Int},
				},
			}))},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "State",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"seq":        &graphql.Field{Type: graphql.Int},
			"status":     &graphql.Field{Type: graphql.String},
			"error":      &graphql.Field{Type: graphql.String},
			"empty":      &graphql.Field{Type: graphql.String},
			"visible":    &graphql.Field{Type: graphql.Int},
			"origin": &graphql.Field{
				Type: geoPointType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(StateView).State.Origin, nil
				},
			},
			"radius": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(StateView).State.Radius, nil
				},
			},
			"selected_categories": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(StateView).State.SelectedCategories, nil
				},
			},
		},
	})

	currentState := func() StateView {
		return stateView(deps.Scheduler.Snapshot(), deps)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"state": &graphql.Field{
				Type:        stateType,
				Description: "Current parameters and status line",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return currentState(), nil
				},
			},
			"pois": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "Visible POIs, optionally narrowed to one category",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					visible := deps.Scheduler.Snapshot().Visible
					cat, _ := p.Args["category"].(string)
					if cat == "" {
						return poiViews(visible, deps.Taxonomy), nil
					}
					var narrowed []domain.EnrichedPOI
					for _, poi := range visible {
						if poi.CategoryOrOther() == cat {
							narrowed = append(narrowed, poi)
						}
					}
					return poiViews(narrowed, deps.Taxonomy), nil
				},
			},
			"groups": &graphql.Field{
				Type:        graphql.NewList(groupType),
				Description: "Visible POIs grouped by category",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return groupViews(deps.Scheduler.Snapshot().Visible, deps.Taxonomy), nil
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Statistics over the visible POIs",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return toGQLStats(deps.Scheduler.Snapshot().Stats), nil
				},
			},
			"taxonomy": &graphql.Field{
				Type:        graphql.NewList(categoryType),
				Description: "Categories in declaration order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Taxonomy.Categories(), nil
				},
			},
			"places": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Saved origin presets",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.SavedPlaces(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setOrigin": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"trigger": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(usecases.TriggerUpdate)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin := domain.Coordinate{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					trigger := usecases.Trigger(p.Args["trigger"].(string))
					if err := deps.Scheduler.SetOrigin(p.Context, origin, trigger); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"setRadius": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"radius": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					radius := deps.Query.ClampRadius(p.Args["radius"].(int))
					if err := deps.Scheduler.SetRadius(p.Context, radius); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"setCategories": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"labels": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["labels"].([]interface{})
					labels := make([]string, 0, len(raw))
					for _, l := range raw {
						labels = append(labels, l.(string))
					}
					if err := deps.Scheduler.SetCategories(p.Context, labels); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"selectAll": &graphql.Field{
				Type: stateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Scheduler.SelectAll(p.Context); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"clearCategories": &graphql.Field{
				Type: stateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Scheduler.ClearCategories(p.Context); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"selectPlace": &graphql.Field{
				Type: stateType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if _, err := deps.Scheduler.SelectPlace(p.Context, p.Args["name"].(string)); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
			"refresh": &graphql.Field{
				Type: stateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Scheduler.Refresh(p.Context); err != nil {
						return nil, err
					}
					return currentState(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
