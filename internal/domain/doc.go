// Package domain models the polygon dashboard: user-drawn map polygons, the
// threshold rules that color them, and the hourly timeline that drives the
// value every polygon is colored by.
//
// # Threshold Rules
//
// A rule is an (operator, value, color) tuple. Rules on a polygon are ordered
// and evaluation is first-match-wins:
//
//	rules = [(>=25, green), (<10, red), (>=10, blue)]
//	30 -> green   5 -> red   15 -> blue
//
// When no rule matches, including the empty list, the fallback color
// [FallbackColor] is used. The "=" operator compares floats exactly, so a
// measured value such as 21.9999 never equals a threshold of 22. NaN matches
// nothing and always resolves to the fallback.
//
// # Drawing
//
// Polygons are built point by point through [Drawer]:
//
//	Idle --Start--> Drawing --Finish(>=3 pts)--> AwaitingSource --Complete--> Idle
//	                   ^                               |
//	                   +-------------Cancel------------+
//
// A finished polygon has between [MinPolygonPoints] and [MaxPolygonPoints]
// vertices. Clicks beyond the cap and premature finishes are silently ignored.
//
// # Timeline
//
// The timeline holds a fixed hourly series fetched for the session. Presets
// narrow the window without touching the data, and a zoom factor (1-4) keeps
// only the first floor(window/zoom) points visible. Selecting an index yields
// the value that is broadcast to every polygon in the [PolygonStore].
//
// # Feed Window
//
// Temperature feeds cover "today minus N days" through "today" (inclusive,
// calendar dates in UTC). See [FeedWindow].
package domain
