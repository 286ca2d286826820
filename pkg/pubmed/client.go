package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// NCBI allows 3 requests per second without an API key.
const requestInterval = 350 * time.Millisecond

// Abstract is one fetched PubMed record: the document id the graph's
// provenance refers back to, plus cleaned abstract text.
type Abstract struct {
	PMID  string
	Title string
	Text  string
	Year  string
}

// Client talks to the NCBI E-utilities endpoints (esearch + efetch). It is a
// narrow collaborator: given a search query it returns cleaned
// (document id, abstract text) pairs and nothing else.
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
	lastReq    time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the E-utilities endpoint, for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a PubMed client. NCBI asks callers to identify
// themselves, so email should be set (ENTREZ_EMAIL is read as a fallback).
func NewClient(email string, opts ...ClientOption) *Client {
	if email == "" {
		email = os.Getenv("ENTREZ_EMAIL")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	c := &Client{
		baseURL:    defaultBaseURL,
		email:      email,
		apiKey:     os.Getenv("ENTREZ_API_KEY"),
		httpClient: retryClient.StandardClient(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs esearch and returns up to maxResults PMIDs sorted by relevance.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("sort", "relevance")
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, errors.Wrap(err, "pubmed search failed")
	}

	var ids []string
	gjson.GetBytes(body, "esearchresult.idlist").ForEach(func(_, v gjson.Result) bool {
		ids = append(ids, v.String())
		return true
	})

	c.logger.WithFields(logrus.Fields{"query": query, "results": len(ids)}).Info("PubMed search completed")
	return ids, nil
}

// Fetch runs efetch for the given PMIDs and returns cleaned abstracts.
// Records without an abstract are skipped.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Abstract, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("rettype", "abstract")
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, errors.Wrap(err, "pubmed fetch failed")
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, errors.Wrap(err, "failed to parse efetch response")
	}

	abstracts := make([]Abstract, 0, len(set.Articles))
	for _, article := range set.Articles {
		text := CleanText(strings.Join(article.Citation.Article.Abstract.Text, " "))
		if text == "" {
			continue
		}
		abstracts = append(abstracts, Abstract{
			PMID:  article.Citation.PMID,
			Title: CleanText(article.Citation.Article.Title),
			Text:  text,
			Year:  article.Citation.Article.Journal.Issue.PubDate.Year,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(pmids),
		"fetched":   len(abstracts),
	}).Info("PubMed abstracts fetched")
	return abstracts, nil
}

// SearchAndFetch combines Search and Fetch for the common case.
func (c *Client) SearchAndFetch(ctx context.Context, query string, maxResults int) ([]Abstract, error) {
	ids, err := c.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.Fetch(ctx, ids)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	// Polite pacing between E-utilities calls.
	if wait := requestInterval - time.Since(c.lastReq); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastReq = time.Now()

	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	params.Set("tool", "biokg")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return io.ReadAll(resp.Body)
}

// Minimal mapping of the efetch XML payload.
type pubmedArticleSet struct {
	Articles []struct {
		Citation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title    string `xml:"ArticleTitle"`
				Abstract struct {
					Text []string `xml:"AbstractText"`
				} `xml:"Abstract"`
				Journal struct {
					Issue struct {
						PubDate struct {
							Year string `xml:"Year"`
						} `xml:"PubDate"`
					} `xml:"JournalIssue"`
				} `xml:"Journal"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}
