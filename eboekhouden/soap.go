package eboekhouden

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

// soapClient speaks the legacy SOAP endpoint. Administrations created before
// the REST API only expose this surface; it is session based like REST, with
// OpenSession returning a SessionID that every later call carries.
type soapClient struct {
	endpoint     string
	username     string
	securityCode string
	code2        string
	http         *http.Client
	limiter      <-chan time.Time

	sessionID string
}

func newSoapClient(username, securityCode1, securityCode2 string) (*soapClient, error) {
	endpoint := strings.TrimSpace(os.Getenv("EBOEKHOUDEN_SOAP_ENDPOINT"))
	if endpoint == "" {
		endpoint = "https://soap.e-boekhouden.nl/soap.asmx"
	}
	if username == "" || securityCode1 == "" || securityCode2 == "" {
		return nil, errors.New("soap credentials are incomplete")
	}
	return &soapClient{
		endpoint:     endpoint,
		username:     username,
		securityCode: securityCode1,
		code2:        securityCode2,
		http:         &http.Client{Timeout: 60 * time.Second},
		limiter:      time.Tick(2 * time.Second),
	}, nil
}

const soapEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>%s</soap:Body>
</soap:Envelope>`

func (c *soapClient) call(ctx context.Context, action, body string, out interface{}) error {
	<-c.limiter
	envelope := fmt.Sprintf(soapEnvelope, body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(envelope))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://www.e-boekhouden.nl/soap/"+action)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrorUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: soap %s returned %d", utils.ErrorUpstreamUnavailable, action, resp.StatusCode)
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("soap %s decode: %w", action, err)
	}
	return nil
}

type soapErrorMsg struct {
	LastErrorCode        string `xml:"LastErrorCode"`
	LastErrorDescription string `xml:"LastErrorDescription"`
}

func (e soapErrorMsg) asError() error {
	if e.LastErrorCode == "" {
		return nil
	}
	return fmt.Errorf("soap error %s: %s", e.LastErrorCode, e.LastErrorDescription)
}

func (c *soapClient) openSession(ctx context.Context) error {
	body := fmt.Sprintf(`<OpenSession xmlns="http://www.e-boekhouden.nl/soap">
  <Username>%s</Username>
  <SecurityCode1>%s</SecurityCode1>
  <SecurityCode2>%s</SecurityCode2>
</OpenSession>`, xmlEscape(c.username), xmlEscape(c.securityCode), xmlEscape(c.code2))

	var parsed struct {
		Result struct {
			ErrorMsg  soapErrorMsg `xml:"ErrorMsg"`
			SessionID string       `xml:"SessionID"`
		} `xml:"Body>OpenSessionResponse>OpenSessionResult"`
	}
	if err := c.call(ctx, "OpenSession", body, &parsed); err != nil {
		return err
	}
	if err := parsed.Result.ErrorMsg.asError(); err != nil {
		return err
	}
	if parsed.Result.SessionID == "" {
		return fmt.Errorf("%w: open session returned empty session id", utils.ErrorUpstreamUnavailable)
	}
	c.sessionID = parsed.Result.SessionID
	return nil
}

func (c *soapClient) ensureSession(ctx context.Context) error {
	if c.sessionID != "" {
		return nil
	}
	return c.openSession(ctx)
}

// getMutaties fetches mutations whose MutatieNr falls in [from, to].
func (c *soapClient) getMutaties(ctx context.Context, from, to int) ([]soapMutatie, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`<GetMutaties xmlns="http://www.e-boekhouden.nl/soap">
  <SessionID>%s</SessionID>
  <SecurityCode2>%s</SecurityCode2>
  <cFilter>
    <MutatieNrVan>%d</MutatieNrVan>
    <MutatieNrTm>%d</MutatieNrTm>
  </cFilter>
</GetMutaties>`, xmlEscape(c.sessionID), xmlEscape(c.code2), from, to)

	var parsed struct {
		Result struct {
			ErrorMsg soapErrorMsg  `xml:"ErrorMsg"`
			Mutaties []soapMutatie `xml:"Mutaties>cMutatieList"`
		} `xml:"Body>GetMutatiesResponse>GetMutatiesResult"`
	}
	if err := c.call(ctx, "GetMutaties", body, &parsed); err != nil {
		return nil, err
	}
	if err := parsed.Result.ErrorMsg.asError(); err != nil {
		return nil, err
	}
	return parsed.Result.Mutaties, nil
}

func (c *soapClient) getGrootboekrekeningen(ctx context.Context) ([]soapGrootboekrekening, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`<GetGrootboekrekeningen xmlns="http://www.e-boekhouden.nl/soap">
  <SessionID>%s</SessionID>
  <SecurityCode2>%s</SecurityCode2>
  <cFilter></cFilter>
</GetGrootboekrekeningen>`, xmlEscape(c.sessionID), xmlEscape(c.code2))

	var parsed struct {
		Result struct {
			ErrorMsg   soapErrorMsg            `xml:"ErrorMsg"`
			Rekeningen []soapGrootboekrekening `xml:"Rekeningen>cGrootboekrekening"`
		} `xml:"Body>GetGrootboekrekeningenResponse>GetGrootboekrekeningenResult"`
	}
	if err := c.call(ctx, "GetGrootboekrekeningen", body, &parsed); err != nil {
		return nil, err
	}
	if err := parsed.Result.ErrorMsg.asError(); err != nil {
		return nil, err
	}
	return parsed.Result.Rekeningen, nil
}

func (c *soapClient) getRelaties(ctx context.Context) ([]soapRelatie, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`<GetRelaties xmlns="http://www.e-boekhouden.nl/soap">
  <SessionID>%s</SessionID>
  <SecurityCode2>%s</SecurityCode2>
  <cFilter></cFilter>
</GetRelaties>`, xmlEscape(c.sessionID), xmlEscape(c.code2))

	var parsed struct {
		Result struct {
			ErrorMsg soapErrorMsg  `xml:"ErrorMsg"`
			Relaties []soapRelatie `xml:"Relaties>cRelatie"`
		} `xml:"Body>GetRelatiesResponse>GetRelatiesResult"`
	}
	if err := c.call(ctx, "GetRelaties", body, &parsed); err != nil {
		return nil, err
	}
	if err := parsed.Result.ErrorMsg.asError(); err != nil {
		return nil, err
	}
	return parsed.Result.Relaties, nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
