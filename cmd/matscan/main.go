// matscan is the ingestion core of a Minecraft server-discovery crawler:
// it processes raw probe responses from an external scanning engine,
// persists trustworthy results, and selects previously seen servers for
// re-probing and fingerprinting.
package main

func main() {
	Execute()
}
