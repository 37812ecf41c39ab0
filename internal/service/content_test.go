package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/svcportal/internal/model"
)

func TestContentCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.content.Create(ctx, env.u1, ContentInput{Title: "  ", PostType: model.PostTypeInquiry})
	assert.True(t, model.IsValidation(err), "blank title: %v", err)

	_, err = env.content.Create(ctx, env.u1, ContentInput{Title: "x", PostType: "blog"})
	assert.True(t, model.IsValidation(err), "bad post type: %v", err)

	_, err = env.content.Create(ctx, env.u1, ContentInput{Title: "x", PostType: model.PostTypeFAQ})
	assert.True(t, model.IsAuthorization(err), "member faq: %v", err)

	_, err = env.content.Create(ctx, env.u1, ContentInput{Title: "x", PostType: model.PostTypeInquiry, ServiceID: strPtr("missing")})
	assert.True(t, model.IsNotFound(err), "unknown service: %v", err)

	faq, err := env.content.Create(ctx, env.admin, ContentInput{
		Title:    "What is svc-1?",
		Content:  "A service.",
		Category: "general",
		PostType: model.PostTypeFAQ,
	})
	require.NoError(t, err)
	assert.True(t, faq.IsPublished)
	assert.Equal(t, model.InquiryStatusNone, faq.Status)
	assert.Equal(t, env.admin.ID, faq.AuthorID)
}

func TestContentList_FiltersByVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc1, svc2 := "svc-1", "svc-2"
	draft := false

	mustCreate := func(actor model.Actor, in ContentInput) model.ContentItem {
		t.Helper()
		item, err := env.content.Create(ctx, actor, in)
		require.NoError(t, err)
		return item
	}

	general := mustCreate(env.admin, ContentInput{Title: "general", PostType: model.PostTypeNotice})
	bound1 := mustCreate(env.admin, ContentInput{Title: "svc-1 notice", PostType: model.PostTypeNotice, ServiceID: &svc1})
	mustCreate(env.admin, ContentInput{Title: "svc-2 notice", PostType: model.PostTypeNotice, ServiceID: &svc2})
	mustCreate(env.admin, ContentInput{Title: "draft", PostType: model.PostTypeFAQ, IsPublished: &draft})
	own := mustCreate(env.u2, ContentInput{Title: "mine", PostType: model.PostTypeInquiry, ServiceID: &svc2, IsPublished: &draft})

	req, err := env.access.Submit(ctx, env.u2, env.u2.ID, svc1)
	require.NoError(t, err)
	_, err = env.access.Approve(ctx, env.admin, req.ID)
	require.NoError(t, err)

	ids := func(items []model.ContentItem) []int64 {
		out := make([]int64, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}

	items, err := env.content.List(ctx, env.u2, ContentFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{general.ID, bound1.ID, own.ID}, ids(items))

	items, err = env.content.List(ctx, env.u1, ContentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{general.ID}, ids(items))

	items, err = env.content.List(ctx, env.admin, ContentFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 5)

	items, err = env.content.List(ctx, env.u2, ContentFilter{PostType: model.PostTypeInquiry})
	require.NoError(t, err)
	assert.Equal(t, []int64{own.ID}, ids(items))

	items, err = env.content.List(ctx, env.admin, ContentFilter{ServiceID: svc1})
	require.NoError(t, err)
	assert.Equal(t, []int64{bound1.ID}, ids(items))

	items, err = env.content.List(ctx, env.u2, ContentFilter{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{own.ID}, ids(items))

	_, err = env.content.List(ctx, env.u2, ContentFilter{PostType: "blog"})
	assert.True(t, model.IsValidation(err))
}

func TestContentUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, err := env.content.Create(ctx, env.u1, ContentInput{
		Title:     "Access issue",
		PostType:  model.PostTypeInquiry,
		ServiceID: strPtr("svc-1"),
	})
	require.NoError(t, err)

	_, err = env.content.Update(ctx, env.u2, item.ID, ContentPatch{Title: strPtr("hijack")})
	assert.True(t, model.IsAuthorization(err), "other member: %v", err)

	faq := model.PostTypeFAQ
	_, err = env.content.Update(ctx, env.u1, item.ID, ContentPatch{PostType: &faq})
	assert.True(t, model.IsAuthorization(err), "member to faq: %v", err)

	_, err = env.content.Update(ctx, env.u1, item.ID, ContentPatch{Title: strPtr("")})
	assert.True(t, model.IsValidation(err), "empty title: %v", err)

	updated, err := env.content.Update(ctx, env.u1, item.ID, ContentPatch{
		Title:     strPtr("Access issue (svc-1)"),
		Content:   strPtr("Details"),
		ServiceID: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Access issue (svc-1)", updated.Title)
	assert.Equal(t, "Details", updated.Content)
	assert.Nil(t, updated.ServiceID)
	assert.Equal(t, model.InquiryStatusPending, updated.Status)

	converted, err := env.content.Update(ctx, env.admin, item.ID, ContentPatch{PostType: &faq})
	require.NoError(t, err)
	assert.Equal(t, model.PostTypeFAQ, converted.PostType)
	assert.Equal(t, model.InquiryStatusNone, converted.Status)

	_, err = env.content.Update(ctx, env.admin, 9999, ContentPatch{})
	assert.True(t, model.IsNotFound(err))
}

func TestContentDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, err := env.content.Create(ctx, env.u1, ContentInput{Title: "temp", PostType: model.PostTypeInquiry})
	require.NoError(t, err)

	err = env.content.Delete(ctx, env.u2, item.ID)
	assert.True(t, model.IsAuthorization(err))

	require.NoError(t, env.content.Delete(ctx, env.u1, item.ID))

	_, err = env.content.Get(ctx, env.admin, item.ID)
	assert.True(t, model.IsNotFound(err))
}

func TestContentRespond(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inquiry, err := env.content.Create(ctx, env.u1, ContentInput{Title: "q", PostType: model.PostTypeInquiry})
	require.NoError(t, err)
	notice, err := env.content.Create(ctx, env.admin, ContentInput{Title: "n", PostType: model.PostTypeNotice})
	require.NoError(t, err)

	_, err = env.content.Respond(ctx, env.u1, inquiry.ID, InquiryAnswer{Response: strPtr("self answer")})
	assert.True(t, model.IsAuthorization(err))

	_, err = env.content.Respond(ctx, env.admin, notice.ID, InquiryAnswer{Response: strPtr("a")})
	assert.True(t, model.IsValidation(err))

	_, err = env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Response: strPtr("a"), Status: "done"})
	assert.True(t, model.IsValidation(err))

	_, err = env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Response: strPtr("a"), Clear: true})
	assert.True(t, model.IsValidation(err))

	_, err = env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{})
	assert.True(t, model.IsValidation(err))

	got, err := env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Status: model.InquiryStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusInProgress, got.Status)
	assert.Nil(t, got.Response)
	assert.False(t, got.AnswerLocked())

	got, err = env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Response: strPtr("n/a"), Status: model.InquiryStatusNotApplicable})
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusNotApplicable, got.Status)
	require.NotNil(t, got.Response)
	assert.Equal(t, "n/a", *got.Response)
}

func TestContentRespond_StatusChangeKeepsAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inquiry, err := env.content.Create(ctx, env.u1, ContentInput{Title: "q", PostType: model.PostTypeInquiry})
	require.NoError(t, err)
	_, err = env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Response: strPtr("answer")})
	require.NoError(t, err)

	got, err := env.content.Respond(ctx, env.admin, inquiry.ID, InquiryAnswer{Status: model.InquiryStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusInProgress, got.Status)
	require.NotNil(t, got.Response)
	assert.Equal(t, "answer", *got.Response)
	require.NotNil(t, got.RespondedBy)
	assert.Equal(t, env.admin.ID, *got.RespondedBy)
	assert.True(t, got.AnswerLocked())

	_, err = env.content.Update(ctx, env.u1, inquiry.ID, ContentPatch{Title: strPtr("edited")})
	assert.True(t, model.IsConflictReason(err, model.ReasonAnswerLocked), "edit: %v", err)
}

func TestContentMutate_HiddenItemIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unpublished := false
	draft, err := env.content.Create(ctx, env.admin, ContentInput{Title: "draft", PostType: model.PostTypeNotice, IsPublished: &unpublished})
	require.NoError(t, err)

	_, err = env.content.Update(ctx, env.u1, draft.ID, ContentPatch{Title: strPtr("x")})
	assert.True(t, model.IsNotFound(err), "update: %v", err)

	err = env.content.Delete(ctx, env.u1, draft.ID)
	assert.True(t, model.IsNotFound(err), "delete: %v", err)

	got, err := env.content.Get(ctx, env.admin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Title)
}
