package rest

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gfiber/diagd/pkg/diag"
	"github.com/gfiber/diagd/pkg/meta"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "rest"})

// Server exposes the diag server counters over HTTP.
type Server struct {
	stats *diag.Stats
}

func NewServer(stats *diag.Stats) *Server {
	return &Server{stats: stats}
}

func (s *Server) GetStats(rw http.ResponseWriter, req *http.Request) error {
	return writeJSON(rw, s.stats.Snapshot())
}

func (s *Server) GetVersion(rw http.ResponseWriter, req *http.Request) error {
	return writeJSON(rw, meta.GetVersion())
}

func writeJSON(rw http.ResponseWriter, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json")
	_, err = rw.Write(data)
	return err
}
