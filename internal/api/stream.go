package api

import "net/http"

// handleStream resolves the caller's scoped environment and delegates to
// the SSE stream server for the connection's full lifetime.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(r)

	projectID, environmentID, err := environmentForSDK(r.Context(), s.store, p)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	s.stream.ServeHTTP(w, r, projectID, environmentID)
}
