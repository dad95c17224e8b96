// Package dataset holds the input records of a map and reads them from disk.
//
// A [Dataset] combines three inputs:
//
//   - members.csv: one row per member with its territory and metric columns
//   - territories.csv: one row per territory with coordinates and colors
//   - steps.json: an array of transactions, grouped into [Step] values by date
//
// An optional GeoJSON file supplies the background outline map. Territory
// coordinates and the background are projected into screen space with a
// Web Mercator projection fitted to the configured width and height.
//
// # Members
//
//	id,name,territory,salary,vorp,per,minutes
//	p1,Jane Doe,BOS,31000000,2.4,18.2,2100
//	p2,John Roe,FA,,,,
//
// The header accepts the aliases player_id, player and team_id. Metric
// columns ([MetricColumns]) feed Member.Metrics; any other numeric column is
// a sample size. Empty cells and markers such as "NA" are unavailable, never
// an error.
//
// # Steps
//
//	[
//	  {
//	    "date": "2023-07-06",
//	    "text": "Celtics trade Smart to Memphis",
//	    "type": "trade",
//	    "affected_teams": ["BOS", "MEM"],
//	    "players": [{"player_id": "p1", "from_team": "BOS", "to_team": "MEM"}]
//	  }
//	]
//
// Steps files are validated against an embedded JSON schema ([StepsSchema])
// before decoding. Cross references between members, territories and steps
// are checked by [New]; a dangling id is an UNKNOWN_ENTITY error.
//
// [Watch] reloads a dataset when any of its files change.
package dataset
