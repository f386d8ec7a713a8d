package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadhunt/internal"
)

func TestHotLoadSubjectRoute(t *testing.T) {
	p := Parse(internal.DialectHotLoad, "VAN from Chicago, IL to Dallas, TX - Hot load : 900 miles, 1000 lbs.", "", "")

	require.NotNil(t, p.OriginCity)
	assert.Equal(t, "Chicago", *p.OriginCity)
	assert.Equal(t, "IL", *p.OriginState)
	assert.Equal(t, "Dallas", *p.DestinationCity)
	assert.Equal(t, "TX", *p.DestinationState)
	require.NotNil(t, p.LoadedMiles)
	assert.Equal(t, 900.0, *p.LoadedMiles)
	require.NotNil(t, p.Weight)
	assert.Equal(t, 1000.0, *p.Weight)
	require.NotNil(t, p.VehicleType)
	assert.Equal(t, "VAN", *p.VehicleType)
}

func TestLabelledFieldsBeatLooseMatches(t *testing.T) {
	text := "Miles: 412\nTotal Weight: 2,350 lbs\nPieces: 3\nDims: 48x40x36\nRate: $1,150.00\nalso 9999 miles from the yard"
	p := Parse(internal.DialectHotLoad, "Hot load 10 miles away", "", text)

	require.NotNil(t, p.LoadedMiles)
	assert.Equal(t, 412.0, *p.LoadedMiles)
	require.NotNil(t, p.Weight)
	assert.Equal(t, 2350.0, *p.Weight)
	require.NotNil(t, p.Pieces)
	assert.Equal(t, 3, *p.Pieces)
	require.NotNil(t, p.Dimensions)
	assert.Equal(t, internal.Dimensions{Length: 48, Width: 40, Height: 36}, *p.Dimensions)
	require.NotNil(t, p.PostedRate)
	assert.Equal(t, 1150.0, *p.PostedRate)
}

func TestStopTableOverridesSubjectRoute(t *testing.T) {
	html := `<html><body>
<table>
<tr><th>Stop #</th><th>Type</th><th>City</th><th>State</th><th>Zip</th><th>Country</th><th>Date/Time</th><th>TZ</th></tr>
<tr><td>1</td><td>Pickup</td><td>Joliet</td><td>IL</td><td>60431</td><td>US</td><td>2025-12-15 08:00</td><td>CST</td></tr>
<tr><td>3</td><td>Delivery</td><td>Atlanta</td><td>GA</td><td>30301</td><td>US</td><td>2025-12-16 17:30</td><td>EST</td></tr>
<tr><td>2</td><td>Delivery</td><td>Memphis</td><td>TN</td><td>38103</td><td>US</td><td>2025-12-16 09:00</td><td>CST</td></tr>
</table>
</body></html>`
	p := Parse(internal.DialectHotLoad, "VAN from Chicago, IL to Dallas, TX", html, "")

	require.Len(t, p.Stops, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{p.Stops[0].Sequence, p.Stops[1].Sequence, p.Stops[2].Sequence})
	assert.Equal(t, "Joliet", *p.OriginCity)
	assert.Equal(t, "IL", *p.OriginState)
	assert.Equal(t, "60431", *p.OriginPostal)
	assert.Equal(t, "Memphis", *p.DestinationCity)
	assert.Equal(t, "TN", *p.DestinationState)

	require.NotNil(t, p.Stops[0].ScheduledAt)
	assert.Equal(t, time.Date(2025, 12, 15, 14, 0, 0, 0, time.UTC), *p.Stops[0].ScheduledAt)
	assert.Equal(t, "CST", p.Stops[0].Timezone)

	var rec internal.ShipmentRecord
	p.ApplyTo(&rec)
	assert.True(t, rec.HasMultipleStops)
}

func TestStopTableWithoutDeliveryKeepsSubjectDestination(t *testing.T) {
	html := `<table>
<tr><th>Type</th><th>City</th><th>State</th></tr>
<tr><td>PU</td><td>Gary</td><td>IN</td></tr>
</table>`
	p := Parse(internal.DialectHotLoad, "VAN from Chicago, IL to Dallas, TX", html, "")

	assert.Equal(t, "Gary", *p.OriginCity)
	assert.Equal(t, "Dallas", *p.DestinationCity)
	var rec internal.ShipmentRecord
	p.ApplyTo(&rec)
	assert.False(t, rec.HasMultipleStops)
}

func TestExpiration(t *testing.T) {
	cases := []struct {
		name string
		text string
		want *time.Time
	}{
		{"iso est", "Expires: 2025-12-14 10:51 EST", ptrTime(time.Date(2025, 12, 14, 15, 51, 0, 0, time.UTC))},
		{"us date pdt", "Load expires 12/14/25 @ 9:05 PM PDT", ptrTime(time.Date(2025, 12, 15, 4, 5, 0, 0, time.UTC))},
		{"cdt", "Expiration: 2025-06-01 00:15 CDT", ptrTime(time.Date(2025, 6, 1, 5, 15, 0, 0, time.UTC))},
		{"unknown zone", "Expires: 2025-12-14 10:51 XYZ", nil},
		{"bad date", "Expires: 2025-13-40 10:51 EST", nil},
		{"no label", "2025-12-14 10:51 EST", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parse(internal.DialectHotLoad, "", "", tc.text)
			if tc.want == nil {
				assert.Nil(t, p.ExpiresAt)
				return
			}
			require.NotNil(t, p.ExpiresAt)
			assert.Equal(t, *tc.want, *p.ExpiresAt)
		})
	}
}

func TestBrokerAndNotesFromHTML(t *testing.T) {
	html := `<html><body>
<p>Please contact <b>Acme Logistics</b> MC# 123456 at (555) 123-4567</p>
<p>Fax: 555-765-4321</p>
<p><a href="mailto:noreply@acme.com">Do not reply</a> <a href="mailto:dispatch@acme.com?subject=Load">Email us</a></p>
<p><span style="color: red">Driver must have TWIC card</span></p>
<p><font color="#FF0000">Tarps required</font></p>
<p><span style="COLOR:#ff0000">Submit your bid on the app</span></p>
<div style="color:red"><span style="color:red">Tarps required</span></div>
</body></html>`
	p := Parse(internal.DialectHotLoad, "SPRINTER from Dallas, TX to Austin, TX", html, "")

	require.NotNil(t, p.BrokerCompany)
	assert.Equal(t, "Acme Logistics", *p.BrokerCompany)
	require.NotNil(t, p.BrokerMC)
	assert.Equal(t, "123456", *p.BrokerMC)
	require.NotNil(t, p.BrokerPhone)
	assert.Equal(t, "(555) 123-4567", *p.BrokerPhone)
	require.NotNil(t, p.BrokerFax)
	assert.Equal(t, "555-765-4321", *p.BrokerFax)
	require.NotNil(t, p.BrokerEmail)
	assert.Equal(t, "dispatch@acme.com", *p.BrokerEmail)
	require.NotNil(t, p.Notes)
	assert.Equal(t, "Driver must have TWIC card | Tarps required", *p.Notes)
}

func TestBrokerMCOnlyInMarkup(t *testing.T) {
	html := `<div>Please contact Swift Freight <span style="display:none">MC 654321</span> for details</div>`
	text := "Please contact Swift Freight for details"
	p := Parse(internal.DialectHotLoad, "", html, text)

	require.NotNil(t, p.BrokerCompany)
	assert.Equal(t, "Swift Freight", *p.BrokerCompany)
	require.NotNil(t, p.BrokerMC)
	assert.Equal(t, "654321", *p.BrokerMC)
}

func TestBrokerEmailFallsBackToSubject(t *testing.T) {
	p := Parse(internal.DialectHotLoad, "Load posted by jane@brokerco.com", "", "nothing here")
	require.NotNil(t, p.BrokerEmail)
	assert.Equal(t, "jane@brokerco.com", *p.BrokerEmail)

	p = Parse(internal.DialectHotLoad, "Load posted by jane@brokerco.com", "", "Email: Ops@BrokerCo.com")
	assert.Equal(t, "ops@brokerco.com", *p.BrokerEmail)
}

func TestNetworkPostLabelledPosting(t *testing.T) {
	html := `<html><body><table>
<tr><td>Origin</td><td>Fort Worth, TX 76102</td></tr>
<tr><td>Destination</td><td>30301</td></tr>
<tr><td>Equipment</td><td>Straight Truck</td></tr>
<tr><td>Loaded Miles</td><td>812</td></tr>
<tr><td>Weight</td><td>6,500</td></tr>
<tr><td>Posted Rate</td><td>$2,400</td></tr>
<tr><td>Posted By</td><td>Maria Lopez</td></tr>
</table>
<p>Posting expires 2025-12-14 10:51 EST</p>
</body></html>`
	p := Parse(internal.DialectNetworkPost, "New posting on the network", html, "")

	assert.Equal(t, "Fort Worth", *p.OriginCity)
	assert.Equal(t, "TX", *p.OriginState)
	assert.Equal(t, "76102", *p.OriginPostal)
	assert.Nil(t, p.DestinationCity)
	assert.Equal(t, "30301", *p.DestinationPostal)
	assert.Equal(t, "Straight Truck", *p.VehicleType)
	assert.Equal(t, 812.0, *p.LoadedMiles)
	assert.Equal(t, 6500.0, *p.Weight)
	assert.Equal(t, 2400.0, *p.PostedRate)
	assert.Equal(t, "Maria Lopez", *p.BrokerName)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, time.Date(2025, 12, 14, 15, 51, 0, 0, time.UTC), *p.ExpiresAt)
}

func TestParseWithNothingToFind(t *testing.T) {
	p := Parse(internal.DialectNetworkPost, "hello", "<p>hi there</p>", "")
	assert.Zero(t, p.FieldCount())
}

func TestMergeOnlyFillsUnsetFields(t *testing.T) {
	miles := 100.0
	other := 200.0
	p := ParsedShipment{LoadedMiles: &miles}
	p.Merge(ParsedShipment{LoadedMiles: &other, Weight: &other})

	assert.Equal(t, 100.0, *p.LoadedMiles)
	assert.Equal(t, 200.0, *p.Weight)
}

func TestStrategiesReportWinner(t *testing.T) {
	src := newSource("VAN from Chicago, IL to Dallas, TX", "", "Pickup: Gary, IN\nDelivery: Waco, TX")
	r, name, ok := FirstMatch(src, hotLoadParser.route)
	require.True(t, ok)
	assert.Equal(t, "subject_from_to", name)
	assert.Equal(t, "Chicago", r.originCity)

	src = newSource("Hot load", "", "Pickup: Gary, IN\nDelivery: Waco, TX")
	r, name, ok = FirstMatch(src, hotLoadParser.route)
	require.True(t, ok)
	assert.Equal(t, "labelled_pickup_delivery", name)
	assert.Equal(t, "Gary", r.originCity)
	assert.Equal(t, "Waco", r.destCity)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestBrokerContactWithLengthChangingText(t *testing.T) {
	invalid := strings.Repeat("\xff", 40) + "\nPlease contact ACME Freight, MC 123456"
	var p ParsedShipment
	require.NotPanics(t, func() { p = Parse(internal.DialectHotLoad, "", "", invalid) })
	require.NotNil(t, p.BrokerCompany)
	assert.Equal(t, "ACME Freight", *p.BrokerCompany)

	dotted := "İİİİİİ\nPlease contact İstanbul Lojistik, MC 654321"
	p = Parse(internal.DialectHotLoad, "", "", dotted)
	require.NotNil(t, p.BrokerCompany)
	assert.Equal(t, "İstanbul Lojistik", *p.BrokerCompany)
}
