// importer/freshness.go
package importer

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Regex to find the posted extract date in format "MM/DD/YYYY" within the
// selected page element.
var postedDateRegex = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)

const postedDateLayout = "01/02/2006"

// GetPostedExtractDate scrapes the state's publication page for the date of
// the most recently posted extract.  A scheduler can compare this against
// the last successful import and skip the run when nothing new is posted.
func GetPostedExtractDate(pageURL, containerSelector string) (time.Time, error) {
	log.Printf("Importer: Checking posted extract date from %s (container: %q)\n", pageURL, containerSelector)

	client := http.Client{Timeout: 20 * time.Second}
	res, err := client.Get(pageURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("failed to get URL %s: status code %d", pageURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}

	text := doc.Find(containerSelector).Text()
	match := postedDateRegex.FindString(text)
	if match == "" {
		return time.Time{}, fmt.Errorf("could not find a posted extract date in %q on %s", containerSelector, pageURL)
	}

	posted, err := time.Parse(postedDateLayout, match)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse posted date %q: %w", match, err)
	}
	log.Printf("Importer: Extract posted on %s\n", posted.Format("2006-01-02"))
	return posted, nil
}
