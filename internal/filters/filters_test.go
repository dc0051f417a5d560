package filters

import (
	"errors"
	"testing"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func route(carrier string, mode models.TransportMode, price, hours float64, connections, bags int, kg float64) models.Route {
	return models.Route{
		Provider:           "test",
		Mode:               mode,
		Carrier:            carrier,
		Origin:             "Stuttgart",
		Destination:        "Vienna",
		PriceEUR:           price,
		TotalDurationHours: hours,
		Connections:        connections,
		Baggage:            models.Baggage{CheckedBags: bags, PerBagKG: kg},
	}
}

func carriers(routes []models.Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Carrier
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestMaxConnections(t *testing.T) {
	routes := []models.Route{
		route("zero", models.ModeFlight, 100, 2, 0, 1, 23),
		route("one", models.ModeFlight, 100, 2, 1, 1, 23),
		route("two", models.ModeFlight, 100, 2, 2, 1, 23),
		route("three", models.ModeFlight, 100, 2, 3, 1, 23),
	}

	f, err := MaxConnections(2)
	require.NoError(t, err)
	step := Apply(f, routes)
	assert.Equal(t, []string{"zero", "one", "two"}, carriers(step.Routes))
	assert.Equal(t, 4, step.Input)
	assert.Equal(t, 1, step.Removed)
	assert.InDelta(t, 0.75, step.PassRate, 1e-9)

	_, err = MaxConnections(-1)
	var perr *ParamError
	assert.True(t, errors.As(err, &perr))
}

func TestMinBaggage(t *testing.T) {
	routes := []models.Route{
		route("one-bag", models.ModeFlight, 100, 2, 0, 1, 23),
		route("three-bags", models.ModeTrain, 100, 6, 1, 3, 30),
	}

	f, err := MinBaggage(2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"three-bags"}, carriers(Apply(f, routes).Routes))

	t.Run("weight", func(t *testing.T) {
		f, err := MinBaggage(1, ptr(25))
		require.NoError(t, err)
		assert.Equal(t, []string{"three-bags"}, carriers(Apply(f, routes).Routes))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := MinBaggage(-1, nil)
		assert.Error(t, err)
		_, err = MinBaggage(1, ptr(0))
		assert.Error(t, err)
	})
}

func TestPriceRange(t *testing.T) {
	routes := []models.Route{
		route("cheap", models.ModeBus, 40, 9, 0, 1, 20),
		route("mid", models.ModeTrain, 120, 6, 0, 2, 30),
		route("dear", models.ModeFlight, 400, 1, 0, 1, 23),
	}

	tests := []struct {
		name     string
		min, max *float64
		expected []string
	}{
		{"max only", nil, ptr(150), []string{"cheap", "mid"}},
		{"min only", ptr(100), nil, []string{"mid", "dear"}},
		{"both inclusive", ptr(40), ptr(120), []string{"cheap", "mid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := PriceRange(tt.min, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, carriers(Apply(f, routes).Routes))
		})
	}

	invalid := []struct {
		name     string
		min, max *float64
	}{
		{"negative min", ptr(-1), nil},
		{"zero max", nil, ptr(0)},
		{"min equals max", ptr(100), ptr(100)},
		{"min above max", ptr(200), ptr(100)},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceRange(tt.min, tt.max)
			assert.Error(t, err)
		})
	}
}

func TestMaxDuration(t *testing.T) {
	routes := []models.Route{
		route("fast", models.ModeFlight, 100, 1.5, 0, 1, 23),
		route("slow", models.ModeBus, 30, 12, 0, 1, 20),
	}
	f, err := MaxDuration(6)
	require.NoError(t, err)
	assert.Equal(t, []string{"fast"}, carriers(Apply(f, routes).Routes))

	_, err = MaxDuration(0)
	assert.Error(t, err)
}

func TestCarriers(t *testing.T) {
	routes := []models.Route{
		route("Lufthansa", models.ModeFlight, 100, 2, 0, 1, 23),
		route("Ryanair", models.ModeFlight, 40, 2, 0, 0, 0),
		route("Deutsche Bahn", models.ModeTrain, 80, 6, 0, 3, 30),
	}

	t.Run("preferred", func(t *testing.T) {
		f, err := Carriers([]string{"lufthansa", "DEUTSCHE BAHN"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Lufthansa", "Deutsche Bahn"}, carriers(Apply(f, routes).Routes))
	})

	t.Run("excluded", func(t *testing.T) {
		f, err := Carriers(nil, []string{"ryanair"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Lufthansa", "Deutsche Bahn"}, carriers(Apply(f, routes).Routes))
	})

	t.Run("overlap is rejected", func(t *testing.T) {
		_, err := Carriers([]string{"Ryanair"}, []string{"RYANAIR"})
		var perr *ParamError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "carrier", perr.Filter)
	})
}

func TestModes(t *testing.T) {
	routes := []models.Route{
		route("a", models.ModeFlight, 100, 2, 0, 1, 23),
		route("b", models.ModeTrain, 80, 6, 0, 3, 30),
		route("c", models.ModeFerry, 60, 20, 0, 4, 40),
	}
	f, err := Modes(models.ModeTrain, models.ModeFerry)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, carriers(Apply(f, routes).Routes))

	_, err = Modes()
	assert.Error(t, err)
	_, err = Modes("zeppelin")
	assert.Error(t, err)
}

func TestFiltersAreIdempotent(t *testing.T) {
	routes := []models.Route{
		route("a", models.ModeFlight, 100, 2, 0, 1, 23),
		route("b", models.ModeTrain, 80, 6, 2, 3, 30),
		route("c", models.ModeBus, 30, 10, 1, 1, 20),
		route("d", models.ModeFlight, 500, 1, 3, 2, 32),
	}

	conn, _ := MaxConnections(1)
	bags, _ := MinBaggage(1, ptr(20))
	price, _ := PriceRange(nil, ptr(200))
	dur, _ := MaxDuration(8)
	carr, _ := Carriers(nil, []string{"c"})
	mode, _ := Modes(models.ModeFlight, models.ModeTrain)

	for _, f := range []Filter{conn, bags, price, dur, carr, mode} {
		t.Run(f.Name(), func(t *testing.T) {
			once := Apply(f, routes).Routes
			twice := Apply(f, once).Routes
			assert.Equal(t, once, twice)
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	routes := []models.Route{route("a", models.ModeFlight, 100, 2, 0, 1, 23)}
	routes[0].Via = []string{"Munich"}

	f, _ := MaxConnections(5)
	step := Apply(f, routes)
	step.Routes[0].Via[0] = "Changed"
	assert.Equal(t, "Munich", routes[0].Via[0])
}

func TestChain(t *testing.T) {
	routes := []models.Route{
		route("direct-flight", models.ModeFlight, 180, 1.25, 0, 1, 23),
		route("train", models.ModeTrain, 120, 7.2, 1, 3, 30),
		route("bus", models.ModeBus, 45, 9.5, 1, 2, 20),
		route("long-bus", models.ModeBus, 30, 14, 3, 1, 20),
	}

	t.Run("connections then baggage", func(t *testing.T) {
		conn, _ := MaxConnections(1)
		bags, _ := MinBaggage(2, nil)
		out, report := NewChain(nil, conn, bags).Apply(routes)

		assert.Equal(t, []string{"train", "bus"}, carriers(out))
		require.Len(t, report.Steps, 2)
		assert.Equal(t, 4, report.Steps[0].Input)
		assert.Equal(t, 3, report.Steps[0].Output)
		assert.Equal(t, 1, report.Steps[1].Removed)
		assert.Equal(t, 4, report.Initial)
		assert.Equal(t, 2, report.Final)
		assert.InDelta(t, 0.5, report.PassRate, 1e-9)
		assert.False(t, report.StoppedEarly)
	})

	t.Run("stops early once empty", func(t *testing.T) {
		price, _ := PriceRange(nil, ptr(10))
		conn, _ := MaxConnections(0)
		out, report := NewChain(nil, price, conn).Apply(routes)

		assert.NotNil(t, out)
		assert.Empty(t, out)
		assert.Len(t, report.Steps, 1)
		assert.True(t, report.StoppedEarly)
		assert.Equal(t, price.Name(), report.StoppedAfter)
	})

	t.Run("empty input", func(t *testing.T) {
		conn, _ := MaxConnections(0)
		out, report := NewChain(nil, conn).Apply(nil)
		assert.Empty(t, out)
		assert.Empty(t, report.Steps)
		assert.Equal(t, 0.0, report.PassRate)
	})

	t.Run("no filters keeps everything", func(t *testing.T) {
		out, report := NewChain(nil).Apply(routes)
		assert.Len(t, out, 4)
		assert.InDelta(t, 1.0, report.PassRate, 1e-9)
	})
}

func TestFromRequest(t *testing.T) {
	req, err := models.NewSearchRequest(models.RequestParams{
		Origin: "Stuttgart", Destination: "Vienna", Date: "2026-06-15",
		MinCheckedBags: 1, MaxConnections: 1, TimeWeight: 0.6, CostWeight: 0.4,
		MaxPriceEUR:       ptr(150),
		MaxDurationHours:  ptr(10),
		MinBagWeightKG:    ptr(20),
		PreferredCarriers: []string{"OBB"},
		ExcludedCarriers:  []string{"Ryanair"},
		Modes:             []models.TransportMode{models.ModeTrain, models.ModeBus},
	})
	require.NoError(t, err)

	chain, err := FromRequest(req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"connections<=1",
		"baggage>=1bags,>=20kg",
		"price_<=150",
		"duration<=10h",
		"carrier_excluded_1",
		"mode_bus-train",
	}, chain.Filters())

	t.Run("minimal request", func(t *testing.T) {
		req, err := models.NewSearchRequest(models.RequestParams{
			Origin: "Berlin", Destination: "Paris", Date: "2026-06-15",
			TimeWeight: 0.5, CostWeight: 0.5,
		})
		require.NoError(t, err)
		chain, err := FromRequest(req, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"connections<=0", "baggage>=0bags"}, chain.Filters())
	})
}
