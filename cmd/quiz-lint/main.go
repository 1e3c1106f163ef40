package main

import (
	"fmt"
	"os"
	"path/filepath"

	"wizzzard/services"
)

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob("./quizzes/*.json")
		if err != nil {
			fmt.Println("error: cannot read ./quizzes:", err)
			os.Exit(1)
		}
	}
	if len(files) == 0 {
		fmt.Println("no .json quiz files found in ./quizzes")
		return
	}

	exitCode := 0
	for _, f := range files {
		def, err := services.LoadDefinition(f)
		if err != nil {
			fmt.Printf("%s: %v\n", f, err)
			exitCode = 1
			continue
		}
		if err := def.Validate(); err != nil {
			fmt.Printf("%s: %v\n", f, err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: OK (%d questions)\n", f, len(def.Questions))
	}
	os.Exit(exitCode)
}
