package datalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/go-querystring/query"
	logger "github.com/sirupsen/logrus"
)

/*
 Uploads are a single GET per line, the same way weather observation sites
 accept readings:

	<url>?station=<id>&key=<pin>&dateutc=2024-02-29+10%3A32%3A00&softwaretype=<version>&warnings=OK&sensor=21&sensor=%213

 station and key may come from ENVMON_STATION and ENVMON_KEY instead of the
 config file.
*/

type upload struct {
	Station      string   `url:"station,omitempty"`
	Key          string   `url:"key,omitempty"`
	DateString   string   `url:"dateutc"`
	SoftwareType string   `url:"softwaretype,omitempty"`
	Boot         string   `url:"boot,omitempty"`
	Warnings     string   `url:"warnings"`
	Sensors      []string `url:"sensor,omitempty"`
	Controllers  []string `url:"controller,omitempty"`
}

type HTTPSink struct {
	baseURL   string
	station   string
	key       string
	software  string
	mandatory bool
	client    *http.Client
	header    *Header
}

func NewHTTPSink(baseURL, station, key, software string, mandatory bool) *HTTPSink {
	if v, ok := os.LookupEnv("ENVMON_STATION"); ok && station == "" {
		station = v
	}
	if v, ok := os.LookupEnv("ENVMON_KEY"); ok && key == "" {
		key = v
	}
	if station == "" || key == "" {
		logger.Warn("Upload station and or key not set")
	}
	return &HTTPSink{
		baseURL:   baseURL,
		station:   station,
		key:       key,
		software:  software,
		mandatory: mandatory,
		client:    &http.Client{Timeout: time.Second * 30},
	}
}

func (s *HTTPSink) Name() string {
	return "http"
}

func (s *HTTPSink) Mandatory() bool {
	return s.mandatory
}

func (s *HTTPSink) Open(_ context.Context, h *Header) error {
	s.header = h
	if s.baseURL == "" {
		return errors.New("no upload url")
	}
	return nil
}

func (s *HTTPSink) WriteLine(ctx context.Context, snap *Snapshot, _ string) error {
	vals, err := query.Values(s.upload(snap))
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	logger.Debugf("Upload: [%v]", vals)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+vals.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload: HTTP [%v]", resp.Status)
	}
	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSink) upload(snap *Snapshot) *upload {
	u := &upload{
		Station:      s.station,
		Key:          s.key,
		DateString:   time.Unix(int64(snap.Time), 0).UTC().Format("2006-01-02 15:04:05"),
		SoftwareType: s.software,
		Warnings:     snap.Warnings.String(),
	}
	if s.header != nil {
		u.Boot = s.header.BootID
	}
	for _, r := range snap.Sensors {
		u.Sensors = append(u.Sensors, r.String())
	}
	for _, r := range snap.Controllers {
		u.Controllers = append(u.Controllers, r.String())
	}
	return u
}
