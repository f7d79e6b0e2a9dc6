// Command linebridge submits commands to a line-protocol worker through a
// bridge and prints the framed responses.
//
//	linebridge exec --worker ./train-ticket-system "query_profile -c root -u alice"
//	linebridge exec --parallel 8 --stats < commands.txt
//	linebridge rules
//	linebridge config sample > linebridge.toml
package main
