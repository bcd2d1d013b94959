package scraper

import (
	"io"
	"log/slog"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

var testSelectors = Selectors{
	Rows:        "//table[@id='ponchoTable']/tbody/tr",
	EAN:         "./td[@data-title='EAN']/p",
	Description: "./td[@data-title='Descripción']/p",
	Price:       "./td[@data-title='Precio']/p",
	NextPage:    "//li[@class='paginate_button next']/a",
}

var testRegion = models.Region{
	Code:        "CAT",
	Description: "Catamarca",
	URL:         "https://example.test/precios/cat",
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.NextPageTimeout = 10 * time.Millisecond
	opts.SettleTimeout = 200 * time.Millisecond
	opts.SettlePoll = time.Millisecond
	opts.SettleDelay = time.Millisecond
	return opts
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
