// Package domain models near-Earth object (NEO) data from NASA's NeoWs feed.
//
// # Data Source
//
// Objects come from the NeoWs "feed" endpoint (https://api.nasa.gov/neo/rest/v1/feed).
// One page covers a 7-day window starting at start_date. The body groups
// objects by calendar date:
//
//	{
//	  "links": {"next": "https://api.nasa.gov/neo/rest/v1/feed?start_date=...", ...},
//	  "element_count": 112,
//	  "near_earth_objects": {
//	    "2025-01-07": [ {object}, {object}, ... ],
//	    "2025-01-08": [ ... ]
//	  }
//	}
//
// links.next is absent or null on the last page.
//
// # NeoWs Data Conventions
//
// Identifiers:
//
//	"id" and "neo_reference_id" are decimal strings ("2465633"). Both are
//	coerced to int64. Numbers are accepted too.
//
// Numeric fields:
//
//	Object-level values (absolute_magnitude_h, estimated_diameter.*) are JSON
//	numbers. Close-approach values (relative_velocity.*, miss_distance.*) are
//	decimal strings ("65260.5"). Both forms are coerced to float64.
//
// Hazard flag:
//
//	is_potentially_hazardous_asteroid must be a JSON boolean. Strings such as
//	"true" are rejected as malformed.
//
// Close approaches:
//
//	close_approach_data is a list ordered by the feed. Only the first entry is
//	kept; the rest are discarded. An empty list rejects the object.
//
// # Rejection
//
// Extraction is explicit per field: each lookup reports whether the field was
// present and whether it had the expected type. The first failing field decides
// the [DropReason] for the whole object. A rejected object contributes no rows
// to either table.
//
// # Duplicates
//
// Records carry no generated identity. Ingesting an overlapping date range twice
// writes the same objects twice.
package domain
