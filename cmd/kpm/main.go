package main

import "github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/cmd/kpm/cmd"

func main() {
	cmd.Execute()
}
