package constant

// AsciiArtLogo is the banner shown in the root command help.
const AsciiArtLogo = `
     _                            _   _
 ___| |_ _ __ ___  __ _ _ __ ___ | |_| |
/ __| __| '__/ _ \/ _' | '_ ' _ \| __| |
\__ \ |_| | |  __/ (_| | | | | | | |_| |
|___/\__|_|  \___|\__,_|_| |_| |_|\__|_|
`
