// internal/spiders/spiders_test.go
package spiders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/progress"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

func testEnv() Env {
	return Env{
		Client: scraper.NewHTTPClient(scraper.ClientConfig{
			Timeout:    5 * time.Second,
			RetryDelay: time.Millisecond,
			RateLimit:  1000,
			RateBurst:  100,
		}),
		Logger: utils.NewNopLogger(),
	}
}

func crawl(t *testing.T, name string, env Env, opts Options) []store.Store {
	t.Helper()
	sp, err := Default().Build(name, env, opts)
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", name, err)
	}
	var out []store.Store
	if err := sp.Crawl(context.Background(), func(s store.Store) { out = append(out, s) }); err != nil {
		t.Fatalf("Crawl(%s) failed: %v", name, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func serveString(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}
}

func mustPoint(t *testing.T, lat, lon float64) *store.Point {
	t.Helper()
	p, err := store.NewPoint(lat, lon)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// ignoreRaw keeps expectations focused on the normalized fields.
var ignoreRaw = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".Raw"
}, cmp.Ignore())

func TestRegistry(t *testing.T) {
	r := Default()
	want := []string{"dunkindonuts", "sweetgreen", "tacobell", "tjmaxx", "wafflehouse", "walmart"}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.Build("nope", testEnv(), Options{}); !errors.Is(err, ErrUnknownSpider) {
		t.Errorf("expected ErrUnknownSpider, got %v", err)
	}
	if _, err := r.Build("tacobell", testEnv(), Options{}); err == nil {
		t.Error("expected seeded spider without zipcodes to fail")
	}

	info, ok := r.Info("walmart")
	if !ok || !info.Render {
		t.Errorf("expected walmart to be flagged for rendering, got %+v", info)
	}
	if len(r.List()) != len(want) {
		t.Errorf("expected %d infos", len(want))
	}
}

func TestTacoBell(t *testing.T) {
	var lookups, searches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/location/v1/10001", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&lookups, 1)
		fmt.Fprint(w, `{"geometry": {"lat": 40.75, "lng": -73.99}}`)
	})
	mux.HandleFunc("/tacobellwebservices/v4/tacobell/stores", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searches, 1)
		if r.URL.Query().Get("latitude") == "" || r.URL.Query().Get("longitude") == "" {
			http.Error(w, "missing coordinates", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"nearByStores": [{
			"storeNumber": "031234",
			"name": "Taco Bell Main St",
			"phoneNumber": "(555) 555-0100",
			"url": "/locations/ny/new-york/1-main-st.html",
			"address": {"line1": "1 Main St", "town": "NEW YORK", "postalCode": "10001", "region": {"isocodeShort": "NY"}},
			"geoPoint": {"latitude": 40.75, "longitude": -73.99},
			"openingHours": {"weekDayOpeningList": [
				{"weekDay": "Mon", "closed": false, "openingTime": {"formattedHour": "7:00 AM"}, "closingTime": {"formattedHour": "11:00 PM"}},
				{"weekDay": "Sun", "closed": true, "openingTime": {"formattedHour": ""}, "closingTime": {"formattedHour": ""}}
			]}
		}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	env := testEnv()
	env.Zipcodes = []seed.Zipcode{{Zipcode: "10001"}, {Zipcode: "94103", Latitude: 37.77, Longitude: -122.41}}

	got := crawl(t, "tacobell", env, Options{BaseURL: srv.URL, APIURL: srv.URL})

	want := store.Store{
		Number:      "031234",
		Name:        "Taco Bell Main St",
		Address:     "1 Main St, New York, NY 10001",
		PhoneNumber: "(555) 555-0100",
		Location:    mustPoint(t, 40.75, -73.99),
		Hours:       hours.Hours{"monday": {Open: "7:00 am", Close: "11:00 pm"}},
		URL:         srv.URL + "/locations/ny/new-york/1-main-st.html",
	}
	if len(got) != 2 {
		t.Fatalf("expected the store once per seed, got %d", len(got))
	}
	if diff := cmp.Diff(want, got[0], ignoreRaw); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
	if got[0].Raw["storeNumber"] != "031234" {
		t.Error("expected raw payload to be kept")
	}
	if atomic.LoadInt32(&lookups) != 1 {
		t.Errorf("expected one zipcode lookup (second seed has coordinates), got %d", lookups)
	}
	if atomic.LoadInt32(&searches) != 2 {
		t.Errorf("expected two store searches, got %d", searches)
	}
}

func TestTacoBell_ResumesFromProgress(t *testing.T) {
	var searches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tacobellwebservices/v4/tacobell/stores", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searches, 1)
		fmt.Fprint(w, `{"nearByStores": []}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tracker, err := progress.Open(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer tracker.Close()

	env := testEnv()
	env.Progress = tracker
	env.Zipcodes = []seed.Zipcode{
		{Zipcode: "10001", Latitude: 40.75, Longitude: -73.99},
		{Zipcode: "94103", Latitude: 37.77, Longitude: -122.41},
	}
	tracker.MarkDone(context.Background(), "tacobell", "10001")

	crawl(t, "tacobell", env, Options{BaseURL: srv.URL, APIURL: srv.URL})
	if atomic.LoadInt32(&searches) != 1 {
		t.Errorf("expected only the pending seed to be searched, got %d", searches)
	}
	crawl(t, "tacobell", env, Options{BaseURL: srv.URL, APIURL: srv.URL})
	if atomic.LoadInt32(&searches) != 1 {
		t.Errorf("expected no searches once every seed is done, got %d", searches)
	}
}

func TestTacoBell_AllSeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	env := testEnv()
	env.Zipcodes = []seed.Zipcode{{Zipcode: "10001"}}
	sp, _ := Default().Build("tacobell", env, Options{BaseURL: srv.URL, APIURL: srv.URL})
	if err := sp.Crawl(context.Background(), func(store.Store) {}); err == nil {
		t.Error("expected error when every seed fails")
	}
}

func TestCrawlPages_GoneAndFailingPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stores/1", serveString(`<h1>One</h1>`))
	mux.HandleFunc("/stores/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	env := testEnv()
	env.Logger = utils.NewZapLogger(zap.New(core))
	env = env.withDefaults("test")

	urls := []string{srv.URL + "/stores/1", srv.URL + "/stores/closed", srv.URL + "/stores/broken"}
	var got []string
	err := crawlPages(context.Background(), env, urls, func(s store.Store) { got = append(got, s.Name) },
		func(ctx context.Context, pageURL string) (store.Store, error) {
			doc, err := env.Documents.GetDocument(ctx, pageURL)
			if err != nil {
				return store.Store{}, err
			}
			return store.Store{Name: doc.Find("h1").Text(), URL: pageURL}, nil
		})
	if err != nil {
		t.Fatalf("crawlPages failed: %v", err)
	}
	if diff := cmp.Diff([]string{"One"}, got); diff != "" {
		t.Errorf("emitted mismatch (-want +got):\n%s", diff)
	}
	if n := logs.FilterMessageSnippet("store page gone").FilterLevelExact(zapcore.InfoLevel).Len(); n != 1 {
		t.Errorf("expected the 404 page logged once as gone, got %d", n)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("expected only the failing page warned about, got %d", n)
	}
}
