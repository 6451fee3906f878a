package api

import (
	"encoding/json"
	"net/http"
)

// HandleGetTag returns a tag by name.
func (h *APIHandler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if h.tags == nil {
		http.Error(w, "Tag database unavailable", http.StatusServiceUnavailable)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Tag name required", http.StatusBadRequest)
		return
	}

	tag, err := h.tags.FindTagByName(name)
	if err != nil {
		h.logger.Error("Tag lookup by name failed: %v", err)
		http.Error(w, "Failed to look up tag", http.StatusInternalServerError)
		return
	}
	if tag == nil {
		http.Error(w, "Tag not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tag)
}

// HandleFindTagsByURL returns the tags claiming a URL. The URL is
// normalized first so differently spelled forms of the same resource find
// the same tag.
func (h *APIHandler) HandleFindTagsByURL(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if h.tags == nil {
		http.Error(w, "Tag database unavailable", http.StatusServiceUnavailable)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "URL required", http.StatusBadRequest)
		return
	}

	canonical, err := h.resolver.Normalize(rawURL)
	if err != nil {
		// Fall back to the raw spelling for domains the resolver cannot
		// classify; stored URLs for them are raw as well.
		canonical = rawURL
	}

	tags, err := h.tags.FindTagsByURL(canonical)
	if err != nil {
		h.logger.Error("Tag lookup by url failed: %v", err)
		http.Error(w, "Failed to look up tags", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"url":  canonical,
		"tags": tags,
	})
}
