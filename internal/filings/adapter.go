// Package filings implements the external-source adapter (spec.md
// §4.1, C1): a uniform read interface over SEC EDGAR. Per spec.md §1
// this collaborator is explicitly out of scope for anything beyond its
// two-method contract — no parsing/business logic worth a dedicated
// client library, so this package is one of the stdlib-only exceptions
// named in SPEC_FULL.md's "Standard-library-only concerns".
package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFormTypes is the set of form types every SearchFilings call is
// restricted to; callers cannot name other form types — carried over from the Python original's
// EdgarService.get_company_filings default (SPEC_FULL.md "Supplemented
// features" §2).
var DefaultFormTypes = []string{"10-K", "10-Q", "8-K"}

// Filing is one filing descriptor returned by SearchFilings.
type Filing struct {
	AccessionNumber string `json:"accessionNumber"`
	Form            string `json:"form"`
	CompanyName     string `json:"companyName"`
	Ticker          string `json:"ticker,omitempty"`
	CIK             string `json:"cik"`
	FilingDate      string `json:"filingDate"`
	PeriodOfReport  string `json:"periodOfReport,omitempty"`
	Description     string `json:"description"`
	URL             string `json:"url"`
}

// Content is the result of FetchContent.
type Content struct {
	Content     string
	Size        int
	RetrievedAt time.Time
}

// Adapter is the production C1 implementation, talking to EDGAR's
// full-text search API and its Archives filing text files over plain
// net/http.
// Every call is best-effort: failures are logged and surfaced as an
// absent result, never an error the controller has to special-case
// (spec.md §4.1 "Contract": "failure is signaled as an absent result
// with a logged reason").
type Adapter struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Config configures Adapter. UserAgent comes from EDGAR_USER_AGENT
// (spec.md §6's env var list); EDGAR requires a descriptive identifying
// user agent on every request or it will reject the call outright.
type Config struct {
	UserAgent string
	Logger    *slog.Logger
}

func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "finsight-analyst (contact@example.com)"
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		userAgent:  userAgent,
		logger:     logger,
	}
}

const fullTextSearchURL = "https://efts.sec.gov/LATEST/search-index"

type fullTextSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				CIKs        []string `json:"ciks"`
				DisplayNames []string `json:"display_names"`
				FormType    string   `json:"form_type"`
				FileDate    string   `json:"file_date"`
				ADSH        string   `json:"adsh"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchFilings queries EDGAR's full-text search for q and returns up
// to limit filing descriptors. A transport or decode failure is logged
// and reported as an empty result rather than an error (spec.md §4.1).
func (a *Adapter) SearchFilings(ctx context.Context, q string, limit int) []Filing {
	reqURL := fmt.Sprintf("%s?q=%s&forms=%s", fullTextSearchURL,
		url.QueryEscape(q), strings.Join(DefaultFormTypes, ","))

	body, err := a.get(ctx, reqURL)
	if err != nil {
		a.logger.Warn("filings: search failed", slog.String("query", q), slog.String("err", err.Error()))
		return nil
	}

	var parsed fullTextSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		a.logger.Warn("filings: search response decode failed", slog.String("err", err.Error()))
		return nil
	}

	out := make([]Filing, 0, limit)
	for _, hit := range parsed.Hits.Hits {
		if len(out) >= limit {
			break
		}
		src := hit.Source
		company := ""
		if len(src.DisplayNames) > 0 {
			company = src.DisplayNames[0]
		}
		cik := ""
		if len(src.CIKs) > 0 {
			cik = src.CIKs[0]
		}
		out = append(out, Filing{
			AccessionNumber: src.ADSH,
			Form:            src.FormType,
			CompanyName:     company,
			CIK:             cik,
			FilingDate:      src.FileDate,
			Description:     fmt.Sprintf("%s filing for %s", src.FormType, company),
			URL:             filingIndexURL(cik, src.ADSH),
		})
	}
	return out
}

func filingIndexURL(cik, accession string) string {
	if cik == "" || accession == "" {
		return ""
	}
	noDashes := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s-index.html", cik, noDashes, accession)
}

// FetchContent retrieves the primary document text of one filing. It
// returns (content, false) if the filing cannot be located or fetched,
// per spec.md §4.1's "absent result" contract.
func (a *Adapter) FetchContent(ctx context.Context, accession, cik string) (Content, bool) {
	noDashes := strings.ReplaceAll(accession, "-", "")
	docURL := fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s.txt", cik, noDashes, accession)
	body, err := a.get(ctx, docURL)
	if err != nil {
		a.logger.Warn("filings: fetch content failed",
			slog.String("accession", accession), slog.String("cik", cik), slog.String("err", err.Error()))
		return Content{}, false
	}

	text := string(body)
	return Content{
		Content:     text,
		Size:        len(text),
		RetrievedAt: time.Now(),
	}, true
}

func (a *Adapter) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("filings: build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("filings: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("filings: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("filings: read body: %w", err)
	}
	return body, nil
}
