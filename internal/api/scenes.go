package api

import (
	"net/http"
)

// handleListScenes lists registered scenes. Hidden scenes are internal
// plumbing and stay out of the catalogue.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := make([]map[string]any, 0)
	for _, desc := range s.registry.List() {
		if desc.Hidden {
			continue
		}
		scenes = append(scenes, map[string]any{
			"name":        desc.Name,
			"description": desc.Description,
			"category":    desc.Category,
			"wantsLoop":   desc.WantsLoop,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes})
}
