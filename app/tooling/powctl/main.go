// This program provides operator tooling for the mining pool.
package main

import "github.com/ardanlabs/powpool/app/tooling/powctl/cmd"

func main() {
	cmd.Execute()
}
