package pipeline

import (
	"time"

	"loadhunt/internal"
)

// hotLoadParser reads the alert-style emails: the subject carries the
// vehicle, route, miles and weight, the body a short labelled summary.
var hotLoadParser = &dialectParser{
	dialect: internal.DialectHotLoad,
	route: []Strategy[routeMatch]{
		subjectRoute(),
		labelledRoute("labelled_pickup_delivery",
			[]string{"Pick Up", "Pickup", "Pick-up", "Origin"},
			[]string{"Delivery", "Deliver To", "Drop", "Destination"}),
	},
	vehicle: []Strategy[string]{
		textStrategy("subject_vehicle", inSubject, `^(?:.*?:\s*)?([A-Za-z][A-Za-z0-9 /\-]*?)\s+[Ff][Rr][Oo][Mm]\s+`),
		labelledText("labelled_vehicle", "Vehicle Type", "Vehicle", "Truck Type", "Equipment"),
	},
	miles: []Strategy[float64]{
		labelledNumber("labelled_miles", "Loaded Miles", "Trip Miles", "Total Miles", "Miles", "Distance"),
		numberStrategy("subject_miles", inSubject, milesSuffix),
		numberStrategy("body_miles", inBody, milesSuffix),
	},
	weight: []Strategy[float64]{
		labelledNumber("labelled_weight", "Total Weight", "Weight", "Wt"),
		numberStrategy("subject_lbs", inSubject, weightSuffix),
		numberStrategy("body_lbs", inBody, weightSuffix),
	},
	pieces: []Strategy[int]{
		labelledInt("labelled_pieces", "Pieces", "Pcs", "Pallets", "Qty"),
		intStrategy("counted_pieces", inCombined, piecesSuffix),
	},
	dimensions: []Strategy[internal.Dimensions]{
		dimensionStrategy("labelled_dims", inBody, labelled("Dims", "Dimensions", "Size")),
		dimensionStrategy("bare_dims", inCombined, ""),
	},
	rate: []Strategy[float64]{
		labelledNumber("labelled_rate", "Rate", "Pay", "Offer"),
		numberStrategy("dollar_amount", inCombined, dollarAmount),
	},
	expiration: []Strategy[time.Time]{
		expirationStrategy("body_expires", inBody),
		expirationStrategy("subject_expires", inSubject),
	},
	brokerName: []Strategy[string]{
		labelledText("labelled_contact", "Contact Name", "Contact", "Dispatcher", "Agent"),
	},
}
