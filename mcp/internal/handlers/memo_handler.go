package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/panel"
	"github.com/mycelian/mycelian-desk/store"
)

// UserLister fetches the current user set for company-wide detection.
type UserLister interface {
	ListUsers(ctx context.Context) ([]client.User, error)
}

// MemoHandler exposes the memo store as tools, acting as the session viewer.
type MemoHandler struct {
	session *store.Session
	users   UserLister
}

// NewMemoHandler creates a memo handler over s.
func NewMemoHandler(s *store.Session, users UserLister) *MemoHandler {
	return &MemoHandler{session: s, users: users}
}

// RegisterTools registers all memo tools with the MCP server.
func (mh *MemoHandler) RegisterTools(s *server.MCPServer) error {
	list := mcp.NewTool("list_memos",
		mcp.WithDescription("List memos with their display state for the acting user; scope 'mine' (default) or 'all'"),
		mcp.WithString("scope", mcp.Enum("mine", "all")),
		mcp.WithBoolean("pending_only", mcp.Description("Only memos still awaiting acknowledgment")),
	)
	send := mcp.NewTool("send_memo",
		mcp.WithDescription("Send a memo; omit recipients to address every user"),
		mcp.WithString("title", mcp.Description("Memo title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Memo body")),
		mcp.WithArray("recipients", mcp.Description("Recipient user ids"), mcp.Items(map[string]any{"type": "string"})),
	)
	read := mcp.NewTool("mark_memo_read",
		mcp.WithDescription("Acknowledge a memo as the acting user"),
		mcp.WithString("memo_id", mcp.Required()),
	)
	snooze := mcp.NewTool("snooze_memo",
		mcp.WithDescription("Hide a memo from the acting user for a number of minutes"),
		mcp.WithString("memo_id", mcp.Required()),
		mcp.WithNumber("duration_minutes", mcp.Required(), mcp.Description("Minutes, greater than zero")),
		mcp.WithString("comment"),
	)
	del := mcp.NewTool("delete_memo",
		mcp.WithDescription("Hide a memo for the acting user, or delete it for everyone with global=true (admins only)"),
		mcp.WithString("memo_id", mcp.Required()),
		mcp.WithBoolean("global"),
	)

	s.AddTool(list, mh.handleListMemos)
	s.AddTool(send, mh.handleSendMemo)
	s.AddTool(read, mh.handleMarkRead)
	s.AddTool(snooze, mh.handleSnooze)
	s.AddTool(del, mh.handleDelete)
	return nil
}

type memoLite struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Display      string `json:"display"`
	CompanyWide  bool   `json:"companyWide"`
	Acknowledged int    `json:"acknowledged"`
	Pending      int    `json:"pending"`
}

func (mh *MemoHandler) handleListMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	viewer := mh.session.Viewer().ID
	scope, _ := optString(req, "scope")

	var memos []client.Memo
	if scope == "all" {
		memos = mh.session.Memos.ListMemos(ctx)
	} else {
		memos = mh.session.Memos.ListUserMemos(ctx, viewer)
		if optBool(req, "pending_only") {
			memos = mh.session.PendingMemos()
		}
	}
	users, err := mh.users.ListUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("list users failed; company-wide flags will be false")
	}

	now := mh.session.Now()
	out := make([]memoLite, len(memos))
	for i, m := range memos {
		sum := panel.Summarize(m, viewer, users, now)
		out[i] = memoLite{
			ID:           m.ID,
			Title:        m.Title,
			Display:      string(sum.Display),
			CompanyWide:  sum.CompanyWide,
			Acknowledged: sum.Acknowledged,
			Pending:      sum.Pending,
		}
	}
	return jsonResult(out), nil
}

func (mh *MemoHandler) handleSendMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, _ := req.RequireString("content")
	in := client.SendMemoRequest{Content: content}
	in.Title, _ = optString(req, "title")
	in.Recipients, _ = optStrings(req, "recipients")

	m, err := mh.session.Memos.SendMemo(ctx, in)
	if err != nil {
		log.Error().Err(err).Msg("send_memo failed")
		return toolError("send memo", err), nil
	}
	return jsonResult(map[string]any{"id": m.ID, "recipients": len(m.Recipients)}), nil
}

func (mh *MemoHandler) handleMarkRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("memo_id")
	if err := mh.session.Memos.MarkAsRead(ctx, id, mh.session.Viewer().ID); err != nil {
		return toolError("mark memo read", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("memo %s acknowledged", id)), nil
}

func (mh *MemoHandler) handleSnooze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("memo_id")
	minutes, _ := optInt(req, "duration_minutes")
	comment, _ := optString(req, "comment")
	if err := mh.session.Memos.Snooze(ctx, id, mh.session.Viewer().ID, minutes, comment); err != nil {
		return toolError("snooze memo", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("memo %s snoozed for %d minutes", id, minutes)), nil
}

func (mh *MemoHandler) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.RequireString("memo_id")
	viewer := mh.session.Viewer().ID
	var err error
	if optBool(req, "global") {
		err = mh.session.Memos.DeleteMemoGlobal(ctx, id, viewer)
	} else {
		err = mh.session.Memos.DeleteMemo(ctx, id, viewer)
	}
	if err != nil {
		return toolError("delete memo", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("memo %s deleted", id)), nil
}
