package util

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/longhorn/go-common-libs/utils"
)

const pingPath = "/ping"

// AccessLogHandler writes a combined access log line for every request
// except health checks on /ping.
func AccessLogHandler(writer io.Writer, router http.Handler) http.Handler {
	logged := handlers.CombinedLoggingHandler(writer, router)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet && req.URL.Path == pingPath {
			router.ServeHTTP(w, req)
			return
		}
		logged.ServeHTTP(w, req)
	})
}

func GetFunctionName(f interface{}) string {
	return utils.GetFunctionName(f)
}
