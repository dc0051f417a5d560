package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/sosodev/duration"
)

const (
	DefaultLiveBaseURL = "https://test.api.amadeus.com"

	tokenPath        = "/v1/security/oauth2/token"
	flightOffersPath = "/v2/shopping/flight-offers"

	defaultMaxOffers = 50
	defaultBagKG     = 23
)

var cityToIATA = map[string]string{
	"stuttgart":  "STR",
	"vienna":     "VIE",
	"berlin":     "BER",
	"munich":     "MUC",
	"frankfurt":  "FRA",
	"hamburg":    "HAM",
	"cologne":    "CGN",
	"dusseldorf": "DUS",
	"düsseldorf": "DUS",
	"paris":      "CDG",
	"london":     "LHR",
	"amsterdam":  "AMS",
	"zurich":     "ZRH",
	"milan":      "MXP",
	"rome":       "FCO",
	"madrid":     "MAD",
	"barcelona":  "BCN",
}

var iataToCity = map[string]string{
	"STR": "Stuttgart",
	"VIE": "Vienna",
	"BER": "Berlin",
	"MUC": "Munich",
	"FRA": "Frankfurt",
	"HAM": "Hamburg",
	"CGN": "Cologne",
	"DUS": "Düsseldorf",
	"CDG": "Paris",
	"LHR": "London",
	"AMS": "Amsterdam",
	"ZRH": "Zurich",
	"MXP": "Milan",
	"FCO": "Rome",
	"MAD": "Madrid",
	"BCN": "Barcelona",
}

// IATACode resolves a city name to its main airport code
func IATACode(city string) (string, bool) {
	code, ok := cityToIATA[strings.ToLower(strings.TrimSpace(city))]
	return code, ok
}

// Live queries a credentialed flight offers API
type Live struct {
	name      string
	baseURL   string
	client    *http.Client
	tokens    *TokenSource
	maxOffers int
	logger    *slog.Logger
}

// NewLive builds a live backend from the provider credentials.
// client may be nil.
func NewLive(cfg Config, client *http.Client, logger *slog.Logger) (*Live, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("provider %s: api key and secret are required", cfg.Name)
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.Credentials.BaseURL, "/")
	if base == "" {
		base = DefaultLiveBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("provider %s: invalid base url: %w", cfg.Name, err)
	}

	return &Live{
		name:      cfg.Name,
		baseURL:   base,
		client:    client,
		tokens:    NewTokenSource(base+tokenPath, cfg.Credentials.APIKey, cfg.Credentials.APISecret, client),
		maxOffers: defaultMaxOffers,
		logger:    logger.With("provider", cfg.Name),
	}, nil
}

// Fetch searches flight offers for the request
func (l *Live) Fetch(ctx context.Context, req models.SearchRequest) ([]models.Route, error) {
	if !modeRequested(req, models.ModeFlight) {
		return nil, nil
	}

	origin, ok := IATACode(req.Origin)
	if !ok {
		l.logger.Info("no airport code for city", "city", req.Origin)
		return nil, nil
	}
	destination, ok := IATACode(req.Destination)
	if !ok {
		l.logger.Info("no airport code for city", "city", req.Destination)
		return nil, nil
	}

	token, err := l.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", origin)
	params.Set("destinationLocationCode", destination)
	params.Set("departureDate", req.Date)
	params.Set("adults", strconv.Itoa(req.Passengers))
	params.Set("max", strconv.Itoa(l.maxOffers))
	params.Set("currencyCode", "EUR")
	if req.MaxConnections == 0 {
		params.Set("nonStop", "true")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+flightOffersPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build offers request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("offers request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}

	routes := make([]models.Route, 0, len(payload.Data))
	for _, offer := range payload.Data {
		route, err := l.parseOffer(offer, payload.Dictionaries.Carriers, req)
		if err != nil {
			l.logger.Warn("skipping malformed offer", "offer_id", offer.ID, "error", err)
			continue
		}
		routes = append(routes, route)
	}
	return routes, nil
}

type offersResponse struct {
	Data         []offer `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

type offer struct {
	ID    string `json:"id"`
	Price struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"price"`
	Itineraries []struct {
		Duration string    `json:"duration"`
		Segments []segment `json:"segments"`
	} `json:"itineraries"`
	TravelerPricings []struct {
		FareDetailsBySegment []struct {
			IncludedCheckedBags *struct {
				Quantity   *int     `json:"quantity"`
				Weight     *float64 `json:"weight"`
				WeightUnit string   `json:"weightUnit"`
			} `json:"includedCheckedBags"`
		} `json:"fareDetailsBySegment"`
	} `json:"travelerPricings"`
}

type segment struct {
	CarrierCode string   `json:"carrierCode"`
	Departure   endpoint `json:"departure"`
	Arrival     endpoint `json:"arrival"`
}

type endpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

func (l *Live) parseOffer(o offer, carriers map[string]string, req models.SearchRequest) (models.Route, error) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return models.Route{}, fmt.Errorf("offer has no segments")
	}
	if o.Price.Currency != "" && o.Price.Currency != "EUR" {
		return models.Route{}, fmt.Errorf("unexpected currency %q", o.Price.Currency)
	}
	price, err := strconv.ParseFloat(o.Price.Total, 64)
	if err != nil {
		return models.Route{}, fmt.Errorf("invalid price %q", o.Price.Total)
	}

	outbound := o.Itineraries[0]
	hours, err := ParseISODuration(outbound.Duration)
	if err != nil {
		return models.Route{}, err
	}

	segments := outbound.Segments
	first, last := segments[0], segments[len(segments)-1]

	carrier := first.CarrierCode
	if name, ok := carriers[carrier]; ok && name != "" {
		carrier = name
	}

	var via []string
	for _, seg := range segments[:len(segments)-1] {
		if city, ok := iataToCity[seg.Arrival.IATACode]; ok {
			via = append(via, city)
		} else if seg.Arrival.IATACode != "" {
			via = append(via, seg.Arrival.IATACode)
		}
	}

	route := models.Route{
		Provider:           l.name,
		Mode:               models.ModeFlight,
		Carrier:            carrier,
		Origin:             req.Origin,
		Destination:        req.Destination,
		Date:               req.Date,
		PriceEUR:           round2(price),
		TotalDurationHours: round2(hours),
		Connections:        len(segments) - 1,
		Baggage:            baggageOf(o),
		Via:                via,
		DepartureTime:      parseLocalTime(first.Departure.At),
		ArrivalTime:        parseLocalTime(last.Arrival.At),
	}
	return route, route.Validate()
}

func baggageOf(o offer) models.Baggage {
	b := models.Baggage{CheckedBags: 1, PerBagKG: defaultBagKG}
	if len(o.TravelerPricings) == 0 || len(o.TravelerPricings[0].FareDetailsBySegment) == 0 {
		return b
	}
	included := o.TravelerPricings[0].FareDetailsBySegment[0].IncludedCheckedBags
	if included == nil {
		return b
	}
	if included.Quantity != nil {
		b.CheckedBags = *included.Quantity
	}
	if included.Weight != nil && *included.Weight > 0 {
		b.PerBagKG = *included.Weight
	}
	return b
}

// ParseISODuration converts an ISO-8601 duration such as PT2H30M to hours
func ParseISODuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("invalid duration %q: no components", s)
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d.Negative {
		return 0, fmt.Errorf("invalid duration %q: negative", s)
	}
	return d.ToTimeDuration().Hours(), nil
}

func parseLocalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return nil
	}
	return &t
}

func modeRequested(req models.SearchRequest, mode models.TransportMode) bool {
	if len(req.Modes) == 0 {
		return true
	}
	for _, m := range req.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
