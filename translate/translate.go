// Package translate localizes user visible messages.
package translate

import (
	"io"
	"log"
	"sync"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

// printer is created on first use, from the user's locale preferences.
var printer = sync.OnceValue(func() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("fantasy16: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	return message.NewPrinter(message.MatchLanguage(locales...))
})

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return printer().Sprintf(key, args...)
}

// Fprintf writes a translated en-US Printf() format to w.
func Fprintf(w io.Writer, key message.Reference, args ...any) (n int, err error) {
	return printer().Fprintf(w, key, args...)
}
