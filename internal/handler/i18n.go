package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/i18n"
)

type I18nHandler struct {
	translator *i18n.Translator
}

func NewI18nHandler(translator *i18n.Translator) *I18nHandler {
	return &I18nHandler{translator: translator}
}

func (h *I18nHandler) Locales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default":   h.translator.Default(),
		"current":   ctxkeys.Locale(r.Context()),
		"supported": h.translator.Languages(),
	})
}
