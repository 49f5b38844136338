package main

import (
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
	}
}
