package main

// @title           Fieldops API
// @version         1.0
// @description     Field operations for agricultural plots: task lifecycle, inventory ledger and harvest consolidation.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token
func main() {
	Execute()
}
