package api

import (
	"net/http"

	"github.com/dukerupert/crown/internal/handler"
)

type message struct {
	Message string `json:"message"`
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	handler.JSON(w, http.StatusOK, message{Message: "Hello World"})
}

// Hello handles GET /hello/{name}
func Hello(w http.ResponseWriter, r *http.Request) {
	handler.JSON(w, http.StatusOK, message{Message: "Hello " + r.PathValue("name")})
}
