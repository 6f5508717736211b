package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(s *Server) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.Methods("GET").Path("/ping").Handler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("pong"))
	}))

	router.Methods("GET").Path("/v1/stats").Handler(HandleError(s.GetStats))
	router.Methods("GET").Path("/v1/version").Handler(HandleError(s.GetVersion))

	return router
}

func HandleError(t func(http.ResponseWriter, *http.Request) error) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := t(rw, req); err != nil {
			log.WithError(err).Warnf("Failed to serve %v", req.URL.Path)
			http.Error(rw, err.Error(), http.StatusInternalServerError)
		}
	})
}
