package chains

// builtin is the maintained alias table. Names follow the slugs most
// deployment repositories use; aliases cover the spellings seen in the wild.
var builtin = []Chain{
	{ID: 1, Name: "ethereum", Aliases: []string{"mainnet", "eth", "ethereum-mainnet", "eth-mainnet", "homestead"}},
	{ID: 5, Name: "goerli", Aliases: []string{"ethereum-goerli", "eth-goerli"}},
	{ID: 10, Name: "optimism", Aliases: []string{"op", "op-mainnet", "optimism-mainnet", "optimistic-ethereum"}},
	{ID: 25, Name: "cronos", Aliases: []string{"cronos-mainnet", "cro"}},
	{ID: 56, Name: "bsc", Aliases: []string{"bnb", "bnb-chain", "bnbchain", "binance", "binance-smart-chain", "bnb-smart-chain", "bsc-mainnet"}},
	{ID: 100, Name: "gnosis", Aliases: []string{"xdai", "gnosis-chain", "gnosischain"}},
	{ID: 130, Name: "unichain", Aliases: []string{"unichain-mainnet"}},
	{ID: 137, Name: "polygon", Aliases: []string{"matic", "polygon-pos", "polygon-mainnet", "matic-mainnet"}},
	{ID: 146, Name: "sonic", Aliases: []string{"sonic-mainnet"}},
	{ID: 169, Name: "manta", Aliases: []string{"manta-pacific"}},
	{ID: 196, Name: "x-layer", Aliases: []string{"xlayer", "okx-xlayer"}},
	{ID: 250, Name: "fantom", Aliases: []string{"ftm", "opera", "fantom-opera"}},
	{ID: 252, Name: "fraxtal", Aliases: []string{"fraxtal-mainnet"}},
	{ID: 288, Name: "boba", Aliases: []string{"boba-network", "boba-eth"}},
	{ID: 324, Name: "zksync", Aliases: []string{"zksync-era", "era", "zksync-mainnet"}},
	{ID: 480, Name: "worldchain", Aliases: []string{"world-chain", "world"}},
	{ID: 999, Name: "hyperevm", Aliases: []string{"hyperliquid", "hyper-evm"}},
	{ID: 1088, Name: "metis", Aliases: []string{"metis-andromeda", "andromeda"}},
	{ID: 1101, Name: "polygon-zkevm", Aliases: []string{"zkevm", "polygon-zk-evm"}},
	{ID: 1135, Name: "lisk", Aliases: []string{"lisk-mainnet"}},
	{ID: 1284, Name: "moonbeam", Aliases: []string{"moonbeam-mainnet"}},
	{ID: 1329, Name: "sei", Aliases: []string{"sei-evm", "sei-mainnet"}},
	{ID: 1868, Name: "soneium", Aliases: []string{"soneium-mainnet"}},
	{ID: 2222, Name: "kava", Aliases: []string{"kava-evm"}},
	{ID: 2741, Name: "abstract", Aliases: []string{"abstract-mainnet"}},
	{ID: 5000, Name: "mantle", Aliases: []string{"mantle-mainnet"}},
	{ID: 8453, Name: "base", Aliases: []string{"base-mainnet"}},
	{ID: 34443, Name: "mode", Aliases: []string{"mode-mainnet"}},
	{ID: 42161, Name: "arbitrum", Aliases: []string{"arbitrum-one", "arb", "arb1", "arbitrum-mainnet"}},
	{ID: 42170, Name: "arbitrum-nova", Aliases: []string{"nova", "arb-nova"}},
	{ID: 42220, Name: "celo", Aliases: []string{"celo-mainnet"}},
	{ID: 43114, Name: "avalanche", Aliases: []string{"avax", "avalanche-c-chain", "c-chain", "avalanche-mainnet"}},
	{ID: 57073, Name: "ink", Aliases: []string{"ink-mainnet"}},
	{ID: 59144, Name: "linea", Aliases: []string{"linea-mainnet"}},
	{ID: 80094, Name: "berachain", Aliases: []string{"bera", "berachain-mainnet"}},
	{ID: 81457, Name: "blast", Aliases: []string{"blast-mainnet"}},
	{ID: 84532, Name: "base-sepolia", Aliases: []string{"basesepolia"}},
	{ID: 167000, Name: "taiko", Aliases: []string{"taiko-mainnet", "taiko-alethia"}},
	{ID: 421614, Name: "arbitrum-sepolia", Aliases: []string{"arb-sepolia"}},
	{ID: 534352, Name: "scroll", Aliases: []string{"scroll-mainnet"}},
	{ID: 7777777, Name: "zora", Aliases: []string{"zora-mainnet"}},
	{ID: 11155111, Name: "sepolia", Aliases: []string{"ethereum-sepolia", "eth-sepolia"}},
	{ID: 11155420, Name: "optimism-sepolia", Aliases: []string{"op-sepolia"}},
	{ID: 1313161554, Name: "aurora", Aliases: []string{"aurora-mainnet"}},
}
