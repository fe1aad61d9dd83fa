// codexd is the admission-control engine for the Codex wallet API
// platform: API key resolution, account gating, quota accounting, rate
// limiting, and usage recording in front of the business services.
package main

func main() {
	Execute()
}
