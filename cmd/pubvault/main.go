// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/pubvault/pkg/cmd"
)

//	@title			PubVault API
//	@version		1.0
//	@description	PubVault 管理科研出版物目录：PDF/BibTeX 附件、按年份目录批量导入、CSV 导入导出与期刊补全。
//	@BasePath		/api/v1

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
