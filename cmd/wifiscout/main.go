// Command wifiscout joins nearby open or known wireless networks one at a
// time, scans the attached subnet, and serves the results over HTTP.
package main

func main() {
	Execute()
}
