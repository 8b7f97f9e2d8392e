// Package templates provides notification template storage and rendering.
//
// A Template pairs a channel with subject and body text containing
// {{placeholder}} markers. Rendering substitutes placeholders from a
// string map; unresolved placeholders are left in the output verbatim so
// a malformed payload produces a visible artifact instead of silently
// dropping content.
//
// Templates are loaded through the Source interface. Three sources ship
// with the package:
//
//   - PGSource reads from a Postgres templates table.
//   - YAMLSource loads a catalog file, for development and tests.
//   - MemorySource is a plain map, for tests.
//
// Wrap any source with NewCachedSource to add LRU caching in front of it:
//
//	src, err := templates.NewYAMLSource("templates.yaml")
//	if err != nil { ... }
//	cached := templates.NewCachedSource(src, 128, 5*time.Minute)
//	tmpl, err := cached.Get(ctx, "welcome_email")
package templates
