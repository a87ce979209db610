package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the gateway API. requireSession guards every
// notification route.
func RegisterRoutes(r *gin.Engine, sessions *SessionHandler, notes *NotificationHandler, health *HealthHandler, requireSession gin.HandlerFunc) {
	r.GET("/health", health.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		session := v1.Group("/session")
		session.POST("/login", sessions.Login)
		session.POST("/logout", sessions.Logout)
		session.GET("/me", sessions.Me)

		n := v1.Group("/notifications", requireSession)
		n.GET("", notes.List)
		n.POST("/refresh", notes.Refresh)
		n.POST("/read-all", notes.MarkAllAsRead)
		n.POST("/local", notes.PushLocal)
		n.POST("/:id/read", notes.MarkAsRead)
		n.GET("/:id/destination", notes.Destination)
	}
}
