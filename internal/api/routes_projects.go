package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/handlers"
	"github.com/kylejeon/testflow/internal/middleware"
)

func registerProjectRoutes(rg *gin.RouterGroup, deps Dependencies) {
	projectHandler := handlers.NewProjectHandler(deps.Projects, deps.Members)
	memberHandler := handlers.NewMemberHandler(deps.Members, deps.Hub)
	inviteHandler := handlers.NewInvitationHandler(deps.Invitations, deps.Members, deps.Users)
	caseHandler := handlers.NewTestCaseHandler(deps.Cases, deps.Members, deps.Hub)
	attachmentHandler := handlers.NewAttachmentHandler(deps.Cases, deps.Members, deps.Store)
	folderHandler := handlers.NewFolderHandler(deps.Folders, deps.Members)
	milestoneHandler := handlers.NewMilestoneHandler(deps.Milestones, deps.Members)
	runHandler := handlers.NewRunHandler(deps.Runs, deps.Members, deps.Hub)
	sessionHandler := handlers.NewSessionHandler(deps.TestSess, deps.Members)
	documentHandler := handlers.NewDocumentHandler(deps.Documents, deps.Members)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub, deps.Members)

	protected := rg.Group("")
	protected.Use(middleware.RequireAuth(deps.JWT))

	protected.GET("/attachments/*key", attachmentHandler.Download)

	protected.POST("/projects", projectHandler.Create)
	protected.GET("/projects", projectHandler.List)

	project := protected.Group("/projects/:projectId")
	{
		project.GET("", projectHandler.Get)
		project.PATCH("", projectHandler.Update)
		project.DELETE("", projectHandler.Delete)

		project.GET("/members", memberHandler.List)
		project.PATCH("/members/:userId", memberHandler.UpdateRole)
		project.DELETE("/members/:userId", memberHandler.Remove)

		project.POST("/invitations", inviteHandler.Invite)
		project.GET("/invitations", inviteHandler.List)
		project.DELETE("/invitations/:invitationId", inviteHandler.Revoke)

		project.POST("/testcases", caseHandler.Create)
		project.GET("/testcases", caseHandler.List)
		project.GET("/testcases/:caseId", caseHandler.Get)
		project.PUT("/testcases/:caseId", caseHandler.Update)
		project.PATCH("/testcases/:caseId/status", caseHandler.UpdateStatus)
		project.DELETE("/testcases/:caseId", caseHandler.Delete)
		project.GET("/testcases/:caseId/history", caseHandler.History)
		project.POST("/history/:entryId/restore", caseHandler.Restore)

		project.POST("/testcases/:caseId/comments", caseHandler.AddComment)
		project.GET("/testcases/:caseId/comments", caseHandler.ListComments)
		project.DELETE("/comments/:commentId", caseHandler.DeleteComment)

		project.POST("/testcases/:caseId/attachments", attachmentHandler.Upload)
		project.DELETE("/testcases/:caseId/attachments", attachmentHandler.Remove)

		project.POST("/folders", folderHandler.Create)
		project.GET("/folders", folderHandler.List)
		project.PATCH("/folders/:folderId", folderHandler.Rename)
		project.DELETE("/folders/:folderId", folderHandler.Delete)

		project.POST("/milestones", milestoneHandler.Create)
		project.GET("/milestones", milestoneHandler.List)
		project.PATCH("/milestones/:milestoneId", milestoneHandler.Update)
		project.DELETE("/milestones/:milestoneId", milestoneHandler.Delete)
		project.GET("/milestones/:milestoneId/progress", milestoneHandler.Progress)

		project.POST("/runs", runHandler.Create)
		project.GET("/runs", runHandler.List)
		project.GET("/runs/:runId", runHandler.Get)
		project.POST("/runs/:runId/results", runHandler.RecordResult)
		project.POST("/runs/:runId/close", runHandler.Close)
		project.GET("/runs/:runId/progress", runHandler.Progress)

		project.POST("/sessions", sessionHandler.Start)
		project.GET("/sessions", sessionHandler.List)
		project.GET("/sessions/:sessionId", sessionHandler.Get)
		project.POST("/sessions/:sessionId/logs", sessionHandler.AppendLog)
		project.POST("/sessions/:sessionId/end", sessionHandler.End)

		project.POST("/documents", documentHandler.Create)
		project.GET("/documents", documentHandler.List)
		project.GET("/documents/:documentId", documentHandler.Get)
		project.PUT("/documents/:documentId", documentHandler.Update)
		project.DELETE("/documents/:documentId", documentHandler.Delete)

		project.GET("/events", realtimeHandler.Subscribe)
	}
}
