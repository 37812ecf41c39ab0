package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/svcportal/internal/model"
)

func (s *testServer) createContent(t *testing.T, user *model.User, body map[string]any) ContentResponse {
	t.Helper()
	w := s.do(t, user, http.MethodPost, "/api/v1/content", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item ContentResponse
	decodeData(t, w, &item)
	return item
}

func TestCreateContent(t *testing.T) {
	s := newTestServer(t)

	t.Run("member inquiry renders markdown", func(t *testing.T) {
		item := s.createContent(t, &s.member, map[string]any{
			"title":     "Need help",
			"content":   "**urgent** <script>alert(1)</script>",
			"post_type": "inquiry",
		})
		assert.Equal(t, model.PostTypeInquiry, item.PostType)
		assert.Equal(t, model.InquiryStatusPending, item.Status)
		assert.Equal(t, s.member.ID, item.AuthorID)
		assert.Contains(t, item.ContentHTML, "<strong>urgent</strong>")
		assert.NotContains(t, item.ContentHTML, "<script>")
	})

	t.Run("member faq forbidden", func(t *testing.T) {
		w := s.do(t, &s.member, http.MethodPost, "/api/v1/content", map[string]any{
			"title": "FAQ", "post_type": "faq",
		})
		assertStatusCode(t, w, http.StatusForbidden)
		assertErrorResponse(t, w, "forbidden")
	})

	t.Run("admin notice", func(t *testing.T) {
		item := s.createContent(t, &s.admin, map[string]any{
			"title": "Maintenance", "post_type": "notice", "service_id": "svc-1",
		})
		require.NotNil(t, item.ServiceID)
		assert.Equal(t, "svc-1", *item.ServiceID)
		assert.Empty(t, item.Status)
	})

	t.Run("unknown service", func(t *testing.T) {
		w := s.do(t, &s.admin, http.MethodPost, "/api/v1/content", map[string]any{
			"title": "Orphan", "post_type": "notice", "service_id": "missing",
		})
		assertStatusCode(t, w, http.StatusNotFound)
	})

	t.Run("invalid post type", func(t *testing.T) {
		w := s.do(t, &s.admin, http.MethodPost, "/api/v1/content", map[string]any{
			"title": "Odd", "post_type": "blog",
		})
		assertStatusCode(t, w, http.StatusUnprocessableEntity)
		resp := assertErrorResponse(t, w, "validation_error")
		assert.Contains(t, resp.Error.Details, "post_type")
	})
}

func TestContentVisibilityOverHTTP(t *testing.T) {
	s := newTestServer(t)

	general := s.createContent(t, &s.admin, map[string]any{"title": "General", "post_type": "faq"})
	bound := s.createContent(t, &s.admin, map[string]any{"title": "Bound", "post_type": "notice", "service_id": "svc-1"})
	draft := s.createContent(t, &s.admin, map[string]any{"title": "Draft", "post_type": "notice", "is_published": false})
	inquiry := s.createContent(t, &s.member, map[string]any{"title": "Private", "post_type": "inquiry", "is_published": false})

	titles := func(user *model.User) []string {
		t.Helper()
		w := s.do(t, user, http.MethodGet, "/api/v1/content", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var items []ContentResponse
		decodeData(t, w, &items)
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.Title)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"General", "Bound", "Draft", "Private"}, titles(&s.admin))
	assert.ElementsMatch(t, []string{"General", "Private"}, titles(&s.member))
	assert.ElementsMatch(t, []string{"General"}, titles(&s.other))

	w := s.do(t, &s.other, http.MethodGet, fmt.Sprintf("/api/v1/content/%d", bound.ID), nil)
	assertStatusCode(t, w, http.StatusNotFound)
	w = s.do(t, &s.other, http.MethodGet, fmt.Sprintf("/api/v1/content/%d", draft.ID), nil)
	assertStatusCode(t, w, http.StatusNotFound)
	w = s.do(t, &s.other, http.MethodGet, fmt.Sprintf("/api/v1/content/%d", inquiry.ID), nil)
	assertStatusCode(t, w, http.StatusNotFound)
	w = s.do(t, &s.other, http.MethodGet, fmt.Sprintf("/api/v1/content/%d", general.ID), nil)
	assertStatusCode(t, w, http.StatusOK)

	// Entitlement to svc-1 reveals the bound notice.
	w = s.do(t, &s.admin, http.MethodPost, "/api/v1/access-requests", map[string]any{"service_id": "svc-1", "user_id": s.other.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var req model.AccessRequest
	decodeData(t, w, &req)
	w = s.do(t, &s.admin, http.MethodPut, fmt.Sprintf("/api/v1/access-requests/%d", req.ID), map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.ElementsMatch(t, []string{"General", "Bound"}, titles(&s.other))
	w = s.do(t, &s.other, http.MethodGet, fmt.Sprintf("/api/v1/content/%d", bound.ID), nil)
	assertStatusCode(t, w, http.StatusOK)
}

func TestListContent_Filters(t *testing.T) {
	s := newTestServer(t)

	s.createContent(t, &s.admin, map[string]any{"title": "FAQ", "post_type": "faq"})
	s.createContent(t, &s.member, map[string]any{"title": "Mine", "post_type": "inquiry"})

	var items []ContentResponse
	w := s.do(t, &s.admin, http.MethodGet, "/api/v1/content?post_type=faq", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "FAQ", items[0].Title)

	w = s.do(t, &s.member, http.MethodGet, "/api/v1/content?mine=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Mine", items[0].Title)

	w = s.do(t, &s.member, http.MethodGet, "/api/v1/content?mine=perhaps", nil)
	assertStatusCode(t, w, http.StatusUnprocessableEntity)

	w = s.do(t, &s.member, http.MethodGet, "/api/v1/content?post_type=blog", nil)
	assertStatusCode(t, w, http.StatusUnprocessableEntity)
}

func TestInquiryAnswerLock(t *testing.T) {
	s := newTestServer(t)

	inquiry := s.createContent(t, &s.member, map[string]any{"title": "Question", "content": "How?", "post_type": "inquiry"})
	path := fmt.Sprintf("/api/v1/content/%d", inquiry.ID)

	// Author edits freely before the answer.
	w := s.do(t, &s.member, http.MethodPut, path, map[string]any{"content": "How exactly?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Other members cannot touch it.
	w = s.do(t, &s.other, http.MethodPut, path, map[string]any{"content": "hijack"})
	assertStatusCode(t, w, http.StatusForbidden)

	// Only admins answer.
	w = s.do(t, &s.member, http.MethodPut, path+"/response", map[string]any{"response": "Like this"})
	assertStatusCode(t, w, http.StatusForbidden)

	w = s.do(t, &s.admin, http.MethodPut, path+"/response", map[string]any{"response": "Like *this*"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answered ContentResponse
	decodeData(t, w, &answered)
	assert.Equal(t, model.InquiryStatusCompleted, answered.Status)
	require.NotNil(t, answered.Response)
	assert.True(t, strings.Contains(answered.ResponseHTML, "<em>this</em>"), answered.ResponseHTML)

	w = s.do(t, &s.member, http.MethodPut, path, map[string]any{"content": "changed my mind"})
	assertStatusCode(t, w, http.StatusConflict)
	assertErrorResponse(t, w, model.ReasonAnswerLocked)

	w = s.do(t, &s.member, http.MethodDelete, path, nil)
	assertStatusCode(t, w, http.StatusConflict)

	// A status-only change keeps the answer and the lock.
	w = s.do(t, &s.admin, http.MethodPut, path+"/response", map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved ContentResponse
	decodeData(t, w, &moved)
	assert.Equal(t, model.InquiryStatusInProgress, moved.Status)
	require.NotNil(t, moved.Response)
	assert.Equal(t, "Like *this*", *moved.Response)

	w = s.do(t, &s.admin, http.MethodPut, path+"/response", map[string]any{"response": nil, "status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &moved)
	require.NotNil(t, moved.Response, "null response must not clear the answer")

	w = s.do(t, &s.member, http.MethodPut, path, map[string]any{"content": "still locked?"})
	assertStatusCode(t, w, http.StatusConflict)
	assertErrorResponse(t, w, model.ReasonAnswerLocked)

	// Clearing the answer explicitly unlocks the inquiry.
	w = s.do(t, &s.admin, http.MethodPut, path+"/response", map[string]any{"clear_response": true, "status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cleared ContentResponse
	decodeData(t, w, &cleared)
	assert.Nil(t, cleared.Response)
	assert.Empty(t, cleared.ResponseHTML)

	w = s.do(t, &s.member, http.MethodDelete, path, nil)
	assertStatusCode(t, w, http.StatusNoContent)

	w = s.do(t, &s.member, http.MethodGet, path, nil)
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestRespondContent_Errors(t *testing.T) {
	s := newTestServer(t)

	faq := s.createContent(t, &s.admin, map[string]any{"title": "FAQ", "post_type": "faq"})

	w := s.do(t, &s.admin, http.MethodPut, fmt.Sprintf("/api/v1/content/%d/response", faq.ID), map[string]any{"response": "n/a"})
	assertStatusCode(t, w, http.StatusUnprocessableEntity)

	w = s.do(t, &s.admin, http.MethodPut, fmt.Sprintf("/api/v1/content/%d/response", faq.ID), map[string]any{"status": "done"})
	assertStatusCode(t, w, http.StatusUnprocessableEntity)

	w = s.do(t, &s.admin, http.MethodPut, "/api/v1/content/9999/response", map[string]any{"response": "x"})
	assertStatusCode(t, w, http.StatusNotFound)

	inquiry := s.createContent(t, &s.member, map[string]any{"title": "Q", "post_type": "inquiry"})
	path := fmt.Sprintf("/api/v1/content/%d/response", inquiry.ID)

	w = s.do(t, &s.admin, http.MethodPut, path, map[string]any{"response": "x", "clear_response": true})
	assertStatusCode(t, w, http.StatusUnprocessableEntity)

	w = s.do(t, &s.admin, http.MethodPut, path, map[string]any{})
	assertStatusCode(t, w, http.StatusUnprocessableEntity)
}

func TestMutateContent_HiddenItemsAreNotFound(t *testing.T) {
	s := newTestServer(t)

	draft := s.createContent(t, &s.admin, map[string]any{"title": "Draft", "post_type": "notice", "is_published": false})
	bound := s.createContent(t, &s.admin, map[string]any{"title": "Bound", "post_type": "notice", "service_id": "svc-1"})
	general := s.createContent(t, &s.admin, map[string]any{"title": "General", "post_type": "notice"})

	for _, id := range []int64{draft.ID, bound.ID} {
		path := fmt.Sprintf("/api/v1/content/%d", id)

		w := s.do(t, &s.member, http.MethodPut, path, map[string]any{"title": "mine now"})
		assertStatusCode(t, w, http.StatusNotFound)
		assertErrorResponse(t, w, "not_found")

		w = s.do(t, &s.member, http.MethodDelete, path, nil)
		assertStatusCode(t, w, http.StatusNotFound)
	}

	// Visible items keep reporting the ownership failure.
	w := s.do(t, &s.member, http.MethodPut, fmt.Sprintf("/api/v1/content/%d", general.ID), map[string]any{"title": "mine now"})
	assertStatusCode(t, w, http.StatusForbidden)
}
