package pipeline

import (
	"time"

	"loadhunt/internal"
)

// networkPostParser reads the load-board posting emails. They are labelled
// field tables, usually with a stop table, and the subject is rarely useful.
var networkPostParser = &dialectParser{
	dialect: internal.DialectNetworkPost,
	route: []Strategy[routeMatch]{
		labelledRoute("labelled_origin_destination",
			[]string{"Origin", "Pick Up", "Pickup", "Shipper"},
			[]string{"Destination", "Deliver To", "Delivery", "Consignee"}),
		subjectRoute(),
	},
	vehicle: []Strategy[string]{
		labelledText("labelled_equipment", "Equipment Type", "Equipment", "Trailer Type", "Vehicle"),
		textStrategy("subject_vehicle", inSubject, `^(?:.*?:\s*)?([A-Za-z][A-Za-z0-9 /\-]*?)\s+[Ff][Rr][Oo][Mm]\s+`),
	},
	miles: []Strategy[float64]{
		labelledNumber("labelled_loaded_miles", "Loaded Miles", "Trip Miles", "Distance", "Miles"),
		numberStrategy("body_miles", inBody, milesSuffix),
	},
	weight: []Strategy[float64]{
		labelledNumber("labelled_weight", "Weight", "Total Weight"),
		numberStrategy("body_lbs", inBody, weightSuffix),
	},
	pieces: []Strategy[int]{
		labelledInt("labelled_pieces", "Pieces", "Piece Count", "Pallets", "Handling Units"),
		intStrategy("counted_pieces", inBody, piecesSuffix),
	},
	dimensions: []Strategy[internal.Dimensions]{
		dimensionStrategy("labelled_dimensions", inBody, labelled("Dimensions", "Dims")),
		dimensionStrategy("bare_dims", inBody, ""),
	},
	rate: []Strategy[float64]{
		labelledNumber("labelled_posted_rate", "Posted Rate", "Target Rate", "Rate"),
		numberStrategy("dollar_amount", inBody, dollarAmount),
	},
	expiration: []Strategy[time.Time]{
		expirationStrategy("body_expires", inBody),
		expirationStrategy("combined_expires", inCombined),
	},
	brokerName: []Strategy[string]{
		labelledText("labelled_posted_by", "Posted By", "Broker Contact", "Contact Name", "Contact"),
	},
}
