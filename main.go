/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           QMS Workflow API
// @version         1.0
// @description     质量管理业务单据的审批流转、待办和审计日志接口
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token
package main

//go:generate swag init --parseDependency --parseInternal

import "github.com/mautops/qms-workflow/cmd"

func main() {
	cmd.Execute()
}
