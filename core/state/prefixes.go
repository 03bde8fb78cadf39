package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	metaVersionKey = []byte("meta/schema-version")
	metaUsageKey   = []byte("meta/storage-usage")

	trailParamsKey   = []byte("trail/params")
	seriesCatalogKey = []byte("trail/series-catalog")

	seriesPrefix      = []byte("trail/series/")
	copyPrefix        = []byte("trail/copy/")
	copySeriesPrefix  = []byte("trail/copy-series/")
	ownerIndexPrefix  = []byte("trail/owner/")
	creatorIndexPrefix = []byte("trail/creator/")
	nonMintablePrefix = []byte("trail/nonmintable/")
	settingsPrefix    = []byte("trail/settings/")
	accountPrefix     = []byte("account/")
)

// prefixedKey hashes prefix||id so every owner, series and account gets a
// collision-free storage namespace regardless of the id contents.
func prefixedKey(prefix []byte, id string) []byte {
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	buf = append(buf, id...)
	return ethcrypto.Keccak256(buf)
}

func seriesKey(id string) []byte       { return prefixedKey(seriesPrefix, id) }
func copyKey(id string) []byte         { return prefixedKey(copyPrefix, id) }
func copySeriesKey(id string) []byte   { return prefixedKey(copySeriesPrefix, id) }
func ownerIndexKey(id string) []byte   { return prefixedKey(ownerIndexPrefix, id) }
func creatorIndexKey(id string) []byte { return prefixedKey(creatorIndexPrefix, id) }
func nonMintableKey(id string) []byte  { return prefixedKey(nonMintablePrefix, id) }
func settingKey(id string) []byte      { return prefixedKey(settingsPrefix, id) }
func accountKey(id string) []byte      { return prefixedKey(accountPrefix, id) }
