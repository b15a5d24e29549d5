// internal/spiders/sweetgreen.go
package spiders

import (
	"context"
	"fmt"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
)

const sweetgreenQuery = `query LocationsSearchBySearchStringWithDisclosureFields($searchString: String!, $showHidden: Boolean) {
  searchLocationsByString(searchString: $searchString, showHidden: $showHidden) {
    score
    location {
      id
      name
      latitude
      longitude
      slug
      address
      city
      state
      zipCode
      isOutpost
      phone
      storeHours
      enabled
      hidden
    }
  }
}`

// Sweetgreen searches the ordering site's GraphQL API once per seed zipcode.
type Sweetgreen struct {
	env    Env
	opts   Options
	parser *hours.Parser
}

// NewSweetgreen is the sweetgreen factory.
func NewSweetgreen(env Env, opts Options) Spider {
	return &Sweetgreen{
		env:    env,
		opts:   opts.orDefault("https://order.sweetgreen.com", "https://order.sweetgreen.com/graphql"),
		parser: hours.NewParser(env.Logger),
	}
}

func (s *Sweetgreen) Name() string { return "sweetgreen" }

type graphQLRequest struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
}

type sweetgreenLocation struct {
	ID         text   `json:"id"`
	Name       string `json:"name"`
	Latitude   text   `json:"latitude"`
	Longitude  text   `json:"longitude"`
	Slug       string `json:"slug"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zipCode"`
	Phone      string `json:"phone"`
	StoreHours string `json:"storeHours"`
}

type sweetgreenResponse struct {
	Data struct {
		SearchLocationsByString []struct {
			Location map[string]interface{} `json:"location"`
		} `json:"searchLocationsByString"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Crawl implements Spider.
func (s *Sweetgreen) Crawl(ctx context.Context, emit func(store.Store)) error {
	return forEachSeed(ctx, s.env, s.Name(), func(ctx context.Context, z seed.Zipcode) error {
		req := graphQLRequest{
			OperationName: "LocationsSearchBySearchStringWithDisclosureFields",
			Query:         sweetgreenQuery,
			Variables:     map[string]interface{}{"searchString": z.Zipcode},
		}
		var resp sweetgreenResponse
		if err := s.env.Client.PostJSON(ctx, s.opts.APIURL, req, &resp); err != nil {
			return fmt.Errorf("location search failed: %w", err)
		}
		if len(resp.Errors) > 0 {
			return fmt.Errorf("location search returned error: %s", resp.Errors[0].Message)
		}

		for _, result := range resp.Data.SearchLocationsByString {
			parsed, err := s.parseLocation(result.Location)
			if err != nil {
				s.env.Logger.Warnf("skipping location near %s: %v", z.Zipcode, err)
				continue
			}
			emit(parsed)
		}
		return nil
	})
}

func (s *Sweetgreen) parseLocation(raw map[string]interface{}) (store.Store, error) {
	var loc sweetgreenLocation
	if err := decodeRaw(raw, &loc); err != nil {
		return store.Store{}, err
	}
	if loc.Slug == "" {
		return store.Store{}, fmt.Errorf("location %s has no slug", loc.ID)
	}

	var h hours.Hours
	if loc.StoreHours == "" {
		s.env.Logger.Warnf("no hours found for store %s", loc.Name)
	} else {
		h = s.parser.Parse(loc.StoreHours)
	}

	storeURL, err := resolve(s.opts.BaseURL, loc.Slug+"/menu")
	if err != nil {
		return store.Store{}, err
	}

	return store.Store{
		Number: loc.ID.String(),
		Name:   loc.Name,
		Address: store.FormatAddress(store.Address{
			Line1:      loc.Address,
			City:       loc.City,
			State:      loc.State,
			PostalCode: loc.ZipCode,
		}),
		PhoneNumber: loc.Phone,
		Location:    point(loc.Latitude, loc.Longitude),
		Hours:       h,
		URL:         storeURL,
		Raw:         raw,
	}, nil
}
