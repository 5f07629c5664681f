package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindTarget struct {
	Email  string  `json:"email" binding:"required,email"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

func validationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/validate", func(c *gin.Context) {
		var req bindTarget
		if !ValidateAndBind(c, &req) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)
	return w
}

func TestValidateAndBind_FieldLevelErrors(t *testing.T) {
	w := postJSON(validationRouter(), `{"email":"not-an-email"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation failed", body.Error)
	assert.Contains(t, body.Fields["Email"], "valid email")
	assert.Contains(t, body.Fields["Amount"], "required")
}

func TestValidateAndBind_ValidBodyPasses(t *testing.T) {
	w := postJSON(validationRouter(), `{"email":"user@example.com","amount":1200}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateAndBind_MalformedJSONRejected(t *testing.T) {
	w := postJSON(validationRouter(), `{"email":`)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation failed", body.Error)
	assert.NotEmpty(t, body.Details)
}
