package eboekhouden

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"github.com/sirupsen/logrus"
)

// Source is the upstream adapter the orchestrator pulls from.
type Source interface {
	FetchChartOfAccounts(ctx context.Context) ([]LedgerAccount, error)
	FetchRelations(ctx context.Context) ([]Relation, error)
	FetchMutations(ctx context.Context, from, to *time.Time) ([]Mutation, error)
}

// fetchWindow is the upstream page cap. Responses never carry more records
// than this, and silently truncate when a filter matches more, so fetches
// walk id windows until a short page proves the range is drained.
const fetchWindow = 500

// NewSource picks the transport from the connection settings: an API token
// selects REST, the username plus two security codes select SOAP.
func NewSource(settings map[string]string) (Source, error) {
	if token := strings.TrimSpace(settings["api_token"]); token != "" {
		client, err := newRestClient(token)
		if err != nil {
			return nil, err
		}
		return &restSource{client: client}, nil
	}
	client, err := newSoapClient(
		strings.TrimSpace(settings["username"]),
		strings.TrimSpace(settings["security_code_1"]),
		strings.TrimSpace(settings["security_code_2"]),
	)
	if err != nil {
		return nil, err
	}
	return &soapSource{client: client}, nil
}

type restSource struct {
	client *restClient
}

func (s *restSource) FetchChartOfAccounts(ctx context.Context) ([]LedgerAccount, error) {
	var accounts []LedgerAccount
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchWindow))
		params.Set("offset", strconv.Itoa(offset))
		var envelope restListEnvelope[restLedgerAccount]
		if err := s.client.getJSON(ctx, "/v1/ledger", params, &envelope); err != nil {
			return nil, err
		}
		for _, item := range envelope.Items {
			accounts = append(accounts, item.normalize())
		}
		if len(envelope.Items) < fetchWindow {
			return accounts, nil
		}
		offset += fetchWindow
	}
}

func (s *restSource) FetchRelations(ctx context.Context) ([]Relation, error) {
	var relations []Relation
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchWindow))
		params.Set("offset", strconv.Itoa(offset))
		var envelope restListEnvelope[restRelation]
		if err := s.client.getJSON(ctx, "/v1/relation", params, &envelope); err != nil {
			return nil, err
		}
		for _, item := range envelope.Items {
			relations = append(relations, item.normalize())
		}
		if len(envelope.Items) < fetchWindow {
			return relations, nil
		}
		offset += fetchWindow
	}
}

func (s *restSource) FetchMutations(ctx context.Context, from, to *time.Time) ([]Mutation, error) {
	logger := config.GetLogger()
	var mutations []Mutation
	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(fetchWindow))
		params.Set("offset", strconv.Itoa(offset))
		if from != nil {
			params.Set("date_from", from.Format("2006-01-02"))
		}
		if to != nil {
			params.Set("date_to", to.Format("2006-01-02"))
		}
		var envelope restListEnvelope[restMutation]
		if err := s.client.getJSON(ctx, "/v1/mutation", params, &envelope); err != nil {
			return nil, err
		}
		for _, item := range envelope.Items {
			mutations = append(mutations, item.normalize())
		}
		if len(envelope.Items) < fetchWindow {
			break
		}
		offset += fetchWindow
	}

	logFetchedRange(logger, mutations)
	return mutations, nil
}

type soapSource struct {
	client *soapClient
}

func (s *soapSource) FetchChartOfAccounts(ctx context.Context) ([]LedgerAccount, error) {
	rekeningen, err := s.client.getGrootboekrekeningen(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]LedgerAccount, 0, len(rekeningen))
	for _, r := range rekeningen {
		accounts = append(accounts, r.normalize())
	}
	return accounts, nil
}

func (s *soapSource) FetchRelations(ctx context.Context) ([]Relation, error) {
	relaties, err := s.client.getRelaties(ctx)
	if err != nil {
		return nil, err
	}
	relations := make([]Relation, 0, len(relaties))
	for _, r := range relaties {
		relations = append(relations, r.normalize())
	}
	return relations, nil
}

// FetchMutations walks mutation-number windows. The SOAP filter takes number
// ranges, not dates, so windows advance until an empty window past the high
// water mark; the date filter is applied client side.
func (s *soapSource) FetchMutations(ctx context.Context, from, to *time.Time) ([]Mutation, error) {
	logger := config.GetLogger()

	maxWindows := 1000
	if v := strings.TrimSpace(os.Getenv("EBOEKHOUDEN_MAX_FETCH_WINDOWS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxWindows = n
		}
	}

	var mutations []Mutation
	lowerBound := 1
	for window := 0; window < maxWindows; window++ {
		batch, err := s.client.getMutaties(ctx, lowerBound, lowerBound+fetchWindow-1)
		if err != nil {
			return nil, err
		}
		for _, m := range batch {
			normalized := m.normalize()
			if from != nil && normalized.PostingDate.Before(*from) {
				continue
			}
			if to != nil && normalized.PostingDate.After(*to) {
				continue
			}
			mutations = append(mutations, normalized)
		}
		if len(batch) == 0 {
			break
		}
		lowerBound += fetchWindow
	}

	logFetchedRange(logger, mutations)
	return mutations, nil
}

func logFetchedRange(logger *logrus.Logger, mutations []Mutation) {
	if len(mutations) == 0 {
		logger.WithFields(logrus.Fields{"field": "eboekhouden"}).Info("fetched 0 mutations")
		return
	}
	minId, maxId := mutations[0].ExternalId, mutations[0].ExternalId
	for _, m := range mutations {
		if numLess(m.ExternalId, minId) {
			minId = m.ExternalId
		}
		if numLess(maxId, m.ExternalId) {
			maxId = m.ExternalId
		}
	}
	logger.WithFields(logrus.Fields{
		"field":  "eboekhouden",
		"count":  len(mutations),
		"min_id": minId,
		"max_id": maxId,
	}).Info("fetched mutations")
}

// numLess compares external ids numerically when both parse, lexically
// otherwise.
func numLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
