package vision

const tablePrompt = `Você está lendo páginas de um atestado de capacidade técnica ou de uma planilha orçamentária de obra pública brasileira.
Extraia TODAS as linhas de serviço das tabelas visíveis nestas páginas.

Responda APENAS com um array JSON, um objeto por linha de serviço:
[{"item": "1.1", "descricao": "Escavação manual de valas", "unidade": "m3", "quantidade": "120,50"}]

Regras:
- "item": o código do item exatamente como aparece (ex.: "1.1", "2.3.1", "S1-1.2", "AD-1"); string vazia se a linha não tiver código.
- "descricao": o texto completo da descrição do serviço.
- "unidade": a unidade exatamente como aparece (m2, m², m3, un, kg, vb...); string vazia se não houver.
- "quantidade": a quantidade exatamente como aparece, preservando o separador decimal original; string vazia se não houver.
- Ignore cabeçalhos de tabela, totais, subtotais, preços, BDI e assinaturas.
- Inclua títulos de bloco como "ADITIVO" apenas quando abrirem um grupo de itens, com item e quantidade vazios.`

const escalationPrompt = `A extração anterior destas páginas falhou. Examine novamente cada tabela com o máximo de cuidado.

Responda SOMENTE com JSON válido: um array de objetos com as chaves "item", "descricao", "unidade" e "quantidade". Sem markdown, sem comentários, sem texto fora do array.
Inclua toda linha que tenha uma descrição de serviço, mesmo que algum campo esteja ilegível (use "" para o campo ilegível).
Não invente linhas que não aparecem nas imagens.`
