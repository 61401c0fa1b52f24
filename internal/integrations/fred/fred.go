package fred

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Dan9191/card-rates/internal/config"
	"github.com/Dan9191/card-rates/internal/models"
	"github.com/Dan9191/card-rates/pkg/retrier"
	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// missingValue is how FRED marks an observation without data
const missingValue = "."

// Client fetches observations from the FRED API
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	retrier *retrier.Retrier
	log     *logrus.Logger
}

// NewClient initializes a FRED client from configuration
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.FREDURL, "/"),
		apiKey:  cfg.FREDAPIKey,
		timeout: cfg.FetchTimeout,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		retrier: retrier.New(retrier.WithRetryIf(func(err error) bool {
			return errors.Is(err, ErrNetwork)
		})),
		log: log,
	}
}

// Fetch retrieves the observations of a series between start and end
// inclusive. The result is sorted by date and tagged as live data.
func (c *Client) Fetch(ctx context.Context, id models.SeriesID, start, end time.Time) (models.Series, error) {
	if !id.Valid() {
		return models.Series{}, errors.Errorf("unknown series %q", id)
	}
	start, end = models.Date(start), models.Date(end)
	if start.After(end) {
		return models.Series{}, errors.Errorf("start %s is after end %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	if c.apiKey == "" {
		return models.Series{}, newError(KindAuth, id, errors.New("api key is missing"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return c.sendRequest(ctx, id, start, end)
	})
	if err != nil {
		return models.Series{}, err
	}

	points, err := parseObservations(id, body, start, end)
	if err != nil {
		return models.Series{}, err
	}

	c.log.WithFields(logrus.Fields{
		"series": id.FREDID(),
		"points": len(points),
	}).Info("Fetched FRED observations")

	return models.Series{ID: id, Points: points, Source: models.SourceLive}, nil
}

// sendRequest performs one observations request and classifies HTTP failures
func (c *Client) sendRequest(ctx context.Context, id models.SeriesID, start, end time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("series_id", id.FREDID())
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "xml")
	q.Set("observation_start", start.Format(models.DateLayout))
	q.Set("observation_end", end.Format(models.DateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, newError(KindNetwork, id, errors.Wrap(err, "failed to create request"))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// the error text contains the URL, which carries the api key
		return nil, newError(KindNetwork, id, errors.Errorf("request failed: %v", redact(err, c.apiKey)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, id, errors.Wrap(err, "failed to read response"))
	}

	c.log.Debugf("FRED response for %s: status %d, %d bytes", id.FREDID(), resp.StatusCode, len(body))

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(KindAuth, id, errors.Errorf("status %d: %s", resp.StatusCode, errorMessage(body)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, newError(KindNetwork, id, errors.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	msg := errorMessage(body)
	if strings.Contains(strings.ToLower(msg), "api_key") {
		return nil, newError(KindAuth, id, errors.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	return nil, newError(KindParse, id, errors.Errorf("status %d: %s", resp.StatusCode, msg))
}

// parseObservations extracts the points within [start, end] from an XML
// observations document
func parseObservations(id models.SeriesID, body []byte, start, end time.Time) ([]models.SeriesPoint, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, newError(KindParse, id, errors.Wrap(err, "failed to parse XML"))
	}

	root := doc.SelectElement("observations")
	if root == nil {
		return nil, newError(KindParse, id, errors.New("observations element not found in XML"))
	}

	byDate := make(map[time.Time]decimal.Decimal)
	for i, obs := range root.SelectElements("observation") {
		raw := strings.TrimSpace(obs.SelectAttrValue("value", ""))
		if raw == "" || raw == missingValue {
			continue
		}

		date, err := models.ParseDate(obs.SelectAttrValue("date", ""))
		if err != nil {
			return nil, newError(KindParse, id, errors.Wrapf(err, "failed to parse date at index %d", i))
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, newError(KindParse, id, errors.Wrapf(err, "failed to parse value at index %d", i))
		}
		if !models.ValidValue(value) {
			return nil, newError(KindParse, id, errors.Errorf("value %s at %s is not a percentage", raw, date.Format(models.DateLayout)))
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		byDate[date] = value
	}

	if len(byDate) == 0 {
		return nil, newError(KindEmpty, id, errors.Errorf("no observations between %s and %s",
			start.Format(models.DateLayout), end.Format(models.DateLayout)))
	}

	points := make([]models.SeriesPoint, 0, len(byDate))
	for date, value := range byDate {
		points = append(points, models.SeriesPoint{Date: date, Value: value})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points, nil
}

// errorMessage returns the message of a FRED <error> document, or the raw
// body when it is not one
func errorMessage(body []byte) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err == nil {
		if el := doc.FindElement("//error"); el != nil {
			return el.SelectAttrValue("message", "")
		}
	}
	const maxLen = 200
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func redact(err error, secret string) string {
	if secret == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), secret, "***")
}
