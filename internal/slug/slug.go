// Package slug derives stable URL-safe identifiers from article titles.
package slug

import (
	gslug "github.com/gosimple/slug"
)

// Fallback is used when a title has no letters or digits at all.
const Fallback = "article"

// Make transliterates title to ASCII, lowercases it and joins the remaining
// words with '-'. Make(Make(x)) == Make(x).
func Make(title string) string {
	return gslug.Make(title)
}

// OrFallback returns Make(title), or Fallback when that is empty.
func OrFallback(title string) string {
	if s := Make(title); s != "" {
		return s
	}
	return Fallback
}
