// internal/spiders/recipes_test.go
package spiders

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
)

func TestSweetgreen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		if err := json.Unmarshal(body, &req); err != nil || req.Variables["searchString"] != "10001" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"data": {"searchLocationsByString": [
			{"score": 1, "location": {
				"id": 42, "name": "NoMad", "latitude": "40.7448", "longitude": "-73.9867",
				"slug": "nomad", "address": "1164 Broadway", "city": "New York", "state": "NY",
				"zipCode": "10001", "phone": "212-555-0101",
				"storeHours": "Mon-Fri: 10:30am-9pm, Sat-Sun: 11am-8pm"
			}},
			{"score": 0.5, "location": {"id": 43, "name": "No slug"}}
		]}}`)
	}))
	defer srv.Close()

	env := testEnv()
	env.Zipcodes = []seed.Zipcode{{Zipcode: "10001"}}
	got := crawl(t, "sweetgreen", env, Options{BaseURL: srv.URL, APIURL: srv.URL + "/graphql"})

	weekday := hours.Interval{Open: "10:30 am", Close: "9:00 pm"}
	weekend := hours.Interval{Open: "11:00 am", Close: "8:00 pm"}
	want := []store.Store{{
		Number:      "42",
		Name:        "NoMad",
		Address:     "1164 Broadway, New York, NY 10001",
		PhoneNumber: "212-555-0101",
		Location:    mustPoint(t, 40.7448, -73.9867),
		Hours: hours.Hours{
			"monday": weekday, "tuesday": weekday, "wednesday": weekday, "thursday": weekday, "friday": weekday,
			"saturday": weekend, "sunday": weekend,
		},
		URL: srv.URL + "/nomad/menu",
	}}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
}

func TestSweetgreen_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(serveString(`{"errors": [{"message": "rate limited"}]}`))
	defer srv.Close()

	env := testEnv()
	env.Zipcodes = []seed.Zipcode{{Zipcode: "10001"}}
	sp, _ := Default().Build("sweetgreen", env, Options{BaseURL: srv.URL, APIURL: srv.URL})
	if err := sp.Crawl(t.Context(), func(store.Store) {}); err == nil {
		t.Error("expected error when every search returns GraphQL errors")
	}
}

const dunkinDirectoryPage = `<html><head><script>
window.__INITIAL__DATA__ = {"document": {"dm_directoryChildren": [
	{"slug": "ny", "dm_directoryChildren": [
		{"slug": "ny/new-york", "dm_directoryChildren": [
			{"slug": "ny/new-york/1-main-st"},
			{"slug": "ny/new-york/missing"}
		]}
	]}
]}};
</script></head><body></body></html>`

const dunkinStorePage = `<html><head><script>
window.__INITIAL__DATA__ = {"document": {
	"id": 345678,
	"mainPhone": "+12125550123",
	"address": {"line1": "1 Main St", "line2": "Unit 2", "city": "New York", "region": "NY", "postalCode": "10001"},
	"geocodedCoordinate": {"latitude": 40.7501, "longitude": -73.9972},
	"hours": {
		"monday": {"openIntervals": [{"start": "05:00", "end": "21:00"}]},
		"tuesday": {"openIntervals": [{"start": "05:00", "end": "12:00"}, {"start": "13:00", "end": "21:00"}]},
		"sunday": {"isClosed": true},
		"holidayHours": [{"date": "2024-12-25", "isClosed": true}],
		"reopenDate": "2025-01-02"
	},
	"c_storeFeatures": ["Drive Thru", " Mobile Ordering ", "Drive Thru", ""]
}};
</script></head><body></body></html>`

func TestDunkinDonuts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/en", serveString(dunkinDirectoryPage))
	mux.HandleFunc("/en/ny/new-york/1-main-st", serveString(dunkinStorePage))
	mux.HandleFunc("/en/ny/new-york/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := crawl(t, "dunkindonuts", testEnv(), Options{BaseURL: srv.URL + "/en"})

	want := []store.Store{{
		Number:      "345678",
		Address:     "1 Main St, Unit 2, New York, NY 10001",
		PhoneNumber: "+12125550123",
		Location:    mustPoint(t, 40.7501, -73.9972),
		Hours:       hours.Hours{"monday": {Open: "5:00 am", Close: "9:00 pm"}},
		Services:    []string{"Drive Thru", "Mobile Ordering"},
		URL:         srv.URL + "/en/ny/new-york/1-main-st",
	}}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
}

const waffleHousePage = `<html><head>
<script id="__NEXT_DATA__" type="application/json">{"props": {"pageProps": {"locations": [
	{
		"storeCode": "1234",
		"businessName": "Waffle House #1234",
		"addressLines": ["100 Peachtree St NW"],
		"city": "ATLANTA", "state": "GA", "postalCode": "30303",
		"latitude": "33.7550", "longitude": "-84.3900",
		"phoneNumbers": ["(404) 555-0100"],
		"businessHours": [["00:00", "23:59"], null, ["00:00", "23:59"]],
		"websiteURL": "https://locations.wafflehouse.com/atlanta-ga-1234"
	},
	"not a location"
]}}}</script></head><body></body></html>`

func TestWaffleHouse(t *testing.T) {
	srv := httptest.NewServer(serveString(waffleHousePage))
	defer srv.Close()

	got := crawl(t, "wafflehouse", testEnv(), Options{BaseURL: srv.URL + "/"})

	allDay := hours.Interval{Open: "12:00 am", Close: "11:59 pm"}
	want := []store.Store{{
		Number:      "1234",
		Name:        "Waffle House #1234",
		Address:     "100 Peachtree St NW, Atlanta, GA 30303",
		PhoneNumber: "(404) 555-0100",
		Location:    mustPoint(t, 33.755, -84.39),
		Hours:       hours.Hours{"monday": allDay, "tuesday": allDay},
		URL:         "https://locations.wafflehouse.com/atlanta-ga-1234",
	}}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
}

func walmartStorePage(id int, city string) string {
	return fmt.Sprintf(`<html><head><script id="__NEXT_DATA__" type="application/json">
{"props": {"pageProps": {"initialData": {"initialDataNodeDetail": {"data": {"nodeDetail": {
	"id": "%d",
	"displayName": "%s Supercenter",
	"phoneNumber": "479-555-0100",
	"address": {"addressLineOne": "%d Walton Blvd", "city": "%s", "state": "AR", "postalCode": "72712"},
	"geoPoint": {"latitude": 36.37, "longitude": -94.22},
	"operationalHours": [
		{"day": "MONDAY", "start": "06:00", "end": "23:00", "closed": false},
		{"day": "SUNDAY", "start": "", "end": "", "closed": true}
	],
	"services": [{"displayName": "Pharmacy"}, {"displayName": "Auto Care Center"}]
}}}}}}}</script></head><body></body></html>`, id, city, id, city)
}

func TestWalmart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/store-directory", serveString(`<html><body>
		<nav><a href="/help">Help</a><a href="/cart">Cart</a></nav>
		<a href="/store-directory/ar">Arkansas</a>
	</body></html>`))
	mux.HandleFunc("/store-directory/ar", serveString(`<html><body>
		<a href="/store-directory/ar/bentonville">Bentonville</a>
		<a href="/store-directory">All states</a>
	</body></html>`))
	mux.HandleFunc("/store-directory/ar/bentonville", serveString(`<html><body>
		<a href="/store/100-bentonville-ar">Store 100</a>
		<a href="/store/101">Store 101</a>
		<a href="/store/100-bentonville-ar#details">Store 100 again</a>
	</body></html>`))
	mux.HandleFunc("/store/100-bentonville-ar", serveString(walmartStorePage(100, "Bentonville")))
	mux.HandleFunc("/store/101", serveString(`<html><body>no payload</body></html>`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := crawl(t, "walmart", testEnv(), Options{BaseURL: srv.URL})

	want := []store.Store{{
		Number:      "100",
		Name:        "Bentonville Supercenter",
		Address:     "100 Walton Blvd, Bentonville, AR 72712",
		PhoneNumber: "479-555-0100",
		Location:    mustPoint(t, 36.37, -94.22),
		Hours:       hours.Hours{"monday": {Open: "6:00 am", Close: "11:00 pm"}},
		Services:    []string{"Pharmacy", "Auto Care Center"},
		URL:         srv.URL + "/store/100-bentonville-ar",
	}}
	if diff := cmp.Diff(want, got, ignoreRaw); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}
}

const tjmaxxStorePage = `<html><body>
<div id="title-block">
	<h4 class="store-name"> Union Square </h4>
	<time itemprop="openingHours">Mon-Sat: 9:30 AM - 9:30 PM, Sun: 10 AM - 8 PM</time>
	<ul class="store-features"><li>Shoes</li><li> Home </li><li>Shoes</li></ul>
</div>
<div class="store-details">
	<div class="store-address">14 E 14th St<br>New York, NY 10003</div>
	<div class="store-phone"> (212) 555-0199 </div>
</div>
<input type="hidden" id="storeID" value="0812">
<input type="hidden" id="lat" value="40.7352">
<input type="hidden" id="long" value="-73.9922">
</body></html>`

func TestTJMaxx(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/store/stores/allStores.jsp", serveString(`<html><body><ul>
		<li class="storelist-item"><a href="/store/s/union-square">Union Square</a></li>
		<li class="storelist-item"><a href="/store/s/union-square">Union Square (dup)</a></li>
		<li class="storelist-item"><a href="/store/s/no-coords">No coords</a></li>
	</ul></body></html>`))
	mux.HandleFunc("/store/s/union-square", serveString(tjmaxxStorePage))
	mux.HandleFunc("/store/s/no-coords", serveString(`<html><body><h4 class="store-name">Lost</h4></body></html>`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := crawl(t, "tjmaxx", testEnv(), Options{BaseURL: srv.URL})
	if len(got) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(got))
	}

	day := hours.Interval{Open: "9:30 am", Close: "9:30 pm"}
	want := store.Store{
		Number:      "0812",
		Name:        "Union Square",
		Address:     "14 E 14th St, New York, NY 10003",
		PhoneNumber: "(212) 555-0199",
		Location:    mustPoint(t, 40.7352, -73.9922),
		Hours: hours.Hours{
			"monday": day, "tuesday": day, "wednesday": day, "thursday": day, "friday": day, "saturday": day,
			"sunday": {Open: "10:00 am", Close: "8:00 pm"},
		},
		Services: []string{"Shoes", "Home"},
		URL:      srv.URL + "/store/s/union-square",
	}
	if diff := cmp.Diff(want, got[1], ignoreRaw); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}

	// Incomplete pages are still emitted; validation in the runner drops them.
	if got[0].Location != nil || store.Validate(got[0]) == nil {
		t.Errorf("expected store without coordinates to fail validation, got %+v", got[0])
	}
}
